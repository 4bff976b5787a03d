// Package convo owns the denormalized conversation adjacency lists:
//
//	conversations:<userID>  set of DM peer ids
//	user_groups:<userID>    set of group ids
//
// Both are JSON arrays maintained by every mutating operation. There is no
// cross-key atomicity: RecordDirect issues two independent writes and a
// crash between them leaves the index asymmetric. Readers tolerate that,
// and the reconcile sweep repairs it after the fact.
package convo

import (
	"encoding/json"
	"errors"

	"courier/pkg/logger"
	"courier/pkg/store"
)

const (
	peersPrefix  = "conversations:"
	groupsPrefix = "user_groups:"
)

// PeersKeyPrefix exposes the peer-index prefix for the reconcile sweep.
func PeersKeyPrefix() string { return peersPrefix }

// GroupsKeyPrefix exposes the group-index prefix for the reconcile sweep.
func GroupsKeyPrefix() string { return groupsPrefix }

func readSet(key string) ([]string, error) {
	raw, err := store.Get(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logger.Warn("corrupt_index_entry", "key", key, "error", err)
		return nil, nil
	}
	return out, nil
}

func writeSet(key string, vals []string) error {
	b, err := json.Marshal(vals)
	if err != nil {
		return err
	}
	return store.Set(key, string(b))
}

func addTo(key, val string) error {
	set, err := readSet(key)
	if err != nil {
		return err
	}
	for _, v := range set {
		if v == val {
			return nil
		}
	}
	return writeSet(key, append(set, val))
}

func removeFrom(key, val string) error {
	set, err := readSet(key)
	if err != nil {
		return err
	}
	out := set[:0]
	for _, v := range set {
		if v != val {
			out = append(out, v)
		}
	}
	if len(out) == len(set) {
		return nil
	}
	return writeSet(key, out)
}

// RecordDirect idempotently inserts each participant into the other's
// peer set. Two sequential writes; no compensation if the second one is
// never reached.
func RecordDirect(senderID, recipientID string) error {
	if err := addTo(peersPrefix+senderID, recipientID); err != nil {
		return err
	}
	return addTo(peersPrefix+recipientID, senderID)
}

// ListPeers returns the DM peer set for a user; empty for unknown users.
func ListPeers(userID string) ([]string, error) {
	return readSet(peersPrefix + userID)
}

// ListGroups returns the group-id set for a user.
func ListGroups(userID string) ([]string, error) {
	return readSet(groupsPrefix + userID)
}

// AddGroup idempotently inserts groupID into the user's group set.
func AddGroup(userID, groupID string) error {
	return addTo(groupsPrefix+userID, groupID)
}

// RemoveGroup removes groupID from the user's group set.
func RemoveGroup(userID, groupID string) error {
	return removeFrom(groupsPrefix+userID, groupID)
}

// SetPeers replaces a user's peer set. Reconcile-sweep use only.
func SetPeers(userID string, peers []string) error {
	return writeSet(peersPrefix+userID, peers)
}

// SetGroups replaces a user's group set. Reconcile-sweep use only.
func SetGroups(userID string, groups []string) error {
	return writeSet(groupsPrefix+userID, groups)
}

// RemoveUser deletes the user's own index entries. Peers' sets are left
// untouched: their entries dangle until profile lookups skip them or the
// reconcile sweep prunes them.
func RemoveUser(userID string) error {
	if err := store.Delete(peersPrefix + userID); err != nil {
		return err
	}
	return store.Delete(groupsPrefix + userID)
}
