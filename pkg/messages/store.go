// Package messages owns the message:* keyspace. Messages are keyed by a
// per-conversation index maintained incrementally on write, so listing a
// conversation is a single prefix scan instead of a sweep of the whole
// message keyspace:
//
//	message:dm:<pairKey>:<ts>-<seq>     direct messages
//	message:group:<groupID>:<ts>-<seq>  group messages
//
// pairKey orders the two participant ids lexicographically, so both
// directions of a DM land under one prefix. The timestamp (Unix millis,
// zero-padded) plus an atomic sequence number makes keys and ids
// collision-free even for same-millisecond sends.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"courier/pkg/logger"
	"courier/pkg/models"
	"courier/pkg/store"
	"courier/pkg/telemetry"
)

const (
	dmPrefix    = "message:dm:"
	groupPrefix = "message:group:"
)

// seq breaks ties when multiple messages share a millisecond.
var seq uint64

// PairKey returns the canonical conversation key for two user ids,
// independent of argument order.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func dmKey(pair string, ts int64, s uint64) string {
	return fmt.Sprintf("%s%s:%020d-%06d", dmPrefix, pair, ts, s)
}

func groupKey(groupID string, ts int64, s uint64) string {
	return fmt.Sprintf("%s%s:%020d-%06d", groupPrefix, groupID, ts, s)
}

// Append stores a new message. The id is derived from sender, target and
// timestamp plus a sequence component, so a same-millisecond double-send
// never overwrites an earlier message. Returns the stored message with id
// and timestamp filled in.
func Append(m models.Message) (models.Message, error) {
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UTC().UnixMilli()
	}
	s := atomic.AddUint64(&seq, 1)
	var key, target, kind string
	switch {
	case m.ToUserID != "" && m.GroupID == "":
		target = m.ToUserID
		key = dmKey(PairKey(m.FromUserID, m.ToUserID), m.Timestamp, s)
		kind = "direct"
	case m.GroupID != "" && m.ToUserID == "":
		target = m.GroupID
		key = groupKey(m.GroupID, m.Timestamp, s)
		kind = "group"
	default:
		return models.Message{}, errors.New("message must have exactly one of toUserId or groupId")
	}
	m.ID = fmt.Sprintf("%s:%s:%d-%d", m.FromUserID, target, m.Timestamp, s)

	b, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := store.Set(key, string(b)); err != nil {
		logger.Error("message_append_failed", "key", key, "error", err)
		return models.Message{}, err
	}
	telemetry.MessagesSent.WithLabelValues(kind).Inc()
	logger.Info("message_appended", "id", m.ID, "kind", kind)
	return m, nil
}

func decodeAll(vals []string) []models.Message {
	out := make([]models.Message, 0, len(vals))
	for _, v := range vals {
		var m models.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			logger.Warn("skipping_corrupt_message", "error", err)
			continue
		}
		out = append(out, m)
	}
	return out
}

// ListDirect returns the DM history between a and b, ascending by
// timestamp. Argument order does not matter. Order within a single
// millisecond follows key order and is not part of the contract.
func ListDirect(a, b string) ([]models.Message, error) {
	vals, err := store.ScanPrefix(dmPrefix + PairKey(a, b) + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll(vals), nil
}

// ListGroup returns the message history of a group, ascending by timestamp.
func ListGroup(groupID string) ([]models.Message, error) {
	vals, err := store.ScanPrefix(groupPrefix + groupID + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll(vals), nil
}

// LatestDirect returns the most recent DM between a and b, if any.
func LatestDirect(a, b string) (models.Message, bool, error) {
	return latest(dmPrefix + PairKey(a, b) + ":")
}

// LatestGroup returns the most recent message in a group, if any.
func LatestGroup(groupID string) (models.Message, bool, error) {
	return latest(groupPrefix + groupID + ":")
}

func latest(prefix string) (models.Message, bool, error) {
	raw, err := store.LastInPrefix(prefix)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Message{}, false, nil
		}
		return models.Message{}, false, err
	}
	var m models.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.Message{}, false, fmt.Errorf("corrupt message record: %w", err)
	}
	return m, true, nil
}

// DeleteAllForUser removes every DM the user sent or received, in both
// directions. Group messages authored by the user are retained on purpose:
// deletion erases the user's private conversations but not the shared
// history of groups they posted to.
func DeleteAllForUser(userID string) (int, error) {
	keys, _, err := store.ScanPrefixItems(dmPrefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		rest := strings.TrimPrefix(k, dmPrefix)
		pair, _, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		lo, hi, ok := strings.Cut(pair, "|")
		if !ok || (lo != userID && hi != userID) {
			continue
		}
		if err := store.Delete(k); err != nil {
			return n, err
		}
		n++
	}
	logger.Info("user_dms_deleted", "user", userID, "count", n)
	return n, nil
}

// DeleteAllForGroup removes every message of the group.
func DeleteAllForGroup(groupID string) (int, error) {
	n, err := store.DeletePrefix(groupPrefix + groupID + ":")
	if err != nil {
		return n, err
	}
	logger.Info("group_messages_deleted", "group", groupID, "count", n)
	return n, nil
}

// CountByKind returns the number of stored direct and group messages.
func CountByKind() (direct int, group int, err error) {
	direct, err = store.CountPrefix(dmPrefix)
	if err != nil {
		return 0, 0, err
	}
	group, err = store.CountPrefix(groupPrefix)
	if err != nil {
		return 0, 0, err
	}
	return direct, group, nil
}

// CountForGroup returns the number of messages stored for one group.
func CountForGroup(groupID string) (int, error) {
	return store.CountPrefix(groupPrefix + groupID + ":")
}
