// Package users owns the user:* keyspace of public profile records.
package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"courier/pkg/logger"
	"courier/pkg/models"
	"courier/pkg/store"
)

// ErrNotFound marks a missing profile.
var ErrNotFound = errors.New("user not found")

const prefix = "user:"

func key(id string) string { return prefix + id }

// Save persists a profile record.
func Save(u models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := store.Set(key(u.ID), string(b)); err != nil {
		return err
	}
	logger.Info("profile_saved", "user", u.ID)
	return nil
}

// Get returns the profile for id, or ErrNotFound.
func Get(id string) (models.User, error) {
	raw, err := store.Get(key(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return models.User{}, fmt.Errorf("corrupt profile record: %w", err)
	}
	return u, nil
}

// GetByEmail scans all profiles for an email match. Full prefix scan;
// acceptable at this system's scale.
func GetByEmail(email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	all, err := List()
	if err != nil {
		return models.User{}, err
	}
	for _, u := range all {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

// List returns all profiles in key order, skipping corrupt records.
func List() ([]models.User, error) {
	vals, err := store.ScanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(vals))
	for _, v := range vals {
		var u models.User
		if err := json.Unmarshal([]byte(v), &u); err != nil {
			logger.Warn("skipping_corrupt_profile", "error", err)
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// UpdateName changes the display name on the stored profile.
func UpdateName(id, name string) (models.User, error) {
	u, err := Get(id)
	if err != nil {
		return models.User{}, err
	}
	u.Name = name
	if err := Save(u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Delete removes the profile record for id.
func Delete(id string) error {
	return store.Delete(key(id))
}

// Count returns the number of stored profiles.
func Count() (int, error) {
	return store.CountPrefix(prefix)
}
