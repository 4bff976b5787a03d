package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"courier/pkg/logger"
)

// ErrNotFound is returned by Get when a key does not exist. Callers on the
// read path are expected to treat it as "absent", not as a failure: partial
// cascades legitimately leave dangling cross-references behind.
var ErrNotFound = errors.New("key not found")

var (
	db     *pebble.DB
	dbPath string
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// Get returns the value stored under key, or ErrNotFound.
func Get(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	out := string(v)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// Set writes value under key with a synced write.
func Set(key, value string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		logger.Error("store_set_failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func Delete(key string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := db.Delete([]byte(key), pebble.Sync); err != nil {
		logger.Error("store_delete_failed", "key", key, "error", err)
		return err
	}
	return nil
}

// ScanPrefix returns all values whose keys start with prefix, in key order.
func ScanPrefix(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	p := []byte(prefix)
	var out []string
	for iter.SeekGE(p); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Value()...)))
	}
	return out, iter.Error()
}

// ScanPrefixItems returns keys and values under prefix, in key order. The
// two slices are index-aligned.
func ScanPrefixItems(prefix string) ([]string, []string, error) {
	if db == nil {
		return nil, nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close()
	p := []byte(prefix)
	var keys, vals []string
	for iter.SeekGE(p); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		keys = append(keys, string(append([]byte(nil), iter.Key()...)))
		vals = append(vals, string(append([]byte(nil), iter.Value()...)))
	}
	return keys, vals, iter.Error()
}

// LastInPrefix returns the value of the greatest key under prefix, or
// ErrNotFound when the prefix is empty. Message keys embed a sortable
// timestamp, so this is the cheap "latest message" lookup.
func LastInPrefix(prefix string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	p := []byte(prefix)
	ub := keyUpperBound(p)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: p, UpperBound: ub})
	if err != nil {
		return "", err
	}
	defer iter.Close()
	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return "", err
		}
		return "", ErrNotFound
	}
	return string(append([]byte(nil), iter.Value()...)), nil
}

// ListKeys returns all keys starting with prefix in key order.
func ListKeys(prefix string) ([]string, error) {
	keys, _, err := ScanPrefixItems(prefix)
	return keys, err
}

// CountPrefix counts keys under prefix.
func CountPrefix(prefix string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	p := []byte(prefix)
	n := 0
	for iter.SeekGE(p); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		n++
	}
	return n, iter.Error()
}

// DeletePrefix deletes every key under prefix one at a time and returns how
// many were removed. Individual deletes keep the count honest when a run is
// interrupted midway; callers accept the partial result.
func DeletePrefix(prefix string) (int, error) {
	keys, err := ListKeys(prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		if err := Delete(k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// keyUpperBound returns the smallest key greater than every key carrying
// the given prefix.
func keyUpperBound(b []byte) []byte {
	end := append([]byte(nil), b...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff; no upper bound
}
