// Package groups owns the group:* keyspace. Group ids carry the group_
// prefix so message-target routing can tell them apart from user ids.
package groups

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier/pkg/convo"
	"courier/pkg/logger"
	"courier/pkg/messages"
	"courier/pkg/models"
	"courier/pkg/store"
)

// ErrNotFound marks a missing group record.
var ErrNotFound = errors.New("group not found")

const (
	keyPrefix = "group:"
	// IDPrefix distinguishes group ids from user ids in message targets.
	IDPrefix = "group_"
)

func key(id string) string { return keyPrefix + id }

// GenID returns a fresh group id.
func GenID() string { return IDPrefix + uuid.NewString() }

// IsGroupID reports whether a message-target id names a group.
func IsGroupID(id string) bool {
	return len(id) > len(IDPrefix) && id[:len(IDPrefix)] == IDPrefix
}

// Create persists a new group and indexes it for every member. The member
// list is deduplicated with the creator forced first. Member indexing
// fails open: if one member's index write fails, earlier members keep
// their entries and the error is surfaced without rollback.
func Create(name, creatorID string, memberIDs []string) (models.Group, error) {
	ordered := make([]string, 0, len(memberIDs)+1)
	ordered = append(ordered, creatorID)
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	g := models.Group{
		ID:        GenID(),
		Name:      name,
		MemberIDs: ordered,
		CreatedBy: creatorID,
		CreatedAt: time.Now().UTC().UnixMilli(),
	}
	if err := save(g); err != nil {
		return models.Group{}, err
	}
	logger.Info("group_created", "group", g.ID, "members", len(ordered))

	for _, id := range ordered {
		if err := convo.AddGroup(id, g.ID); err != nil {
			logger.Error("group_index_write_failed", "group", g.ID, "user", id, "error", err)
			return g, err
		}
	}
	return g, nil
}

func save(g models.Group) error {
	b, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return store.Set(key(g.ID), string(b))
}

// Get returns the group record, or ErrNotFound.
func Get(id string) (models.Group, error) {
	raw, err := store.Get(key(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	var g models.Group
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return models.Group{}, fmt.Errorf("corrupt group record: %w", err)
	}
	return g, nil
}

// List returns all groups in key order, skipping corrupt records.
func List() ([]models.Group, error) {
	vals, err := store.ScanPrefix(keyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.Group, 0, len(vals))
	for _, v := range vals {
		var g models.Group
		if err := json.Unmarshal([]byte(v), &g); err != nil {
			logger.Warn("skipping_corrupt_group", "error", err)
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// Count returns the number of stored groups.
func Count() (int, error) {
	return store.CountPrefix(keyPrefix)
}

// Delete cascades a group deletion: the record goes first, then the id is
// stripped from every member's group set, then all group messages are
// removed. A failure partway leaves dangling references that read paths
// skip and the reconcile sweep prunes; completed steps are not rolled
// back.
func Delete(id string) error {
	g, err := Get(id)
	if err != nil {
		return err
	}
	if err := store.Delete(key(id)); err != nil {
		return err
	}
	logger.Info("group_record_deleted", "group", id)
	for _, m := range g.MemberIDs {
		if err := convo.RemoveGroup(m, id); err != nil {
			logger.Error("group_unindex_failed", "group", id, "user", m, "error", err)
			return err
		}
	}
	if _, err := messages.DeleteAllForGroup(id); err != nil {
		return err
	}
	return nil
}

// RemoveMember filters one member out of the group record. Only invoked
// from user-deletion cascades; there is no standalone membership API.
func RemoveMember(groupID, userID string) error {
	g, err := Get(groupID)
	if err != nil {
		return err
	}
	out := g.MemberIDs[:0]
	for _, m := range g.MemberIDs {
		if m != userID {
			out = append(out, m)
		}
	}
	if len(out) == len(g.MemberIDs) {
		return nil
	}
	g.MemberIDs = out
	return save(g)
}
