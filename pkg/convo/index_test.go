package convo

import (
	"testing"

	"courier/pkg/store"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestRecordDirectSymmetricAndIdempotent(t *testing.T) {
	openTestDB(t)

	if err := RecordDirect("alice", "bob"); err != nil {
		t.Fatalf("RecordDirect: %v", err)
	}
	// repeated sends must not duplicate entries
	if err := RecordDirect("alice", "bob"); err != nil {
		t.Fatalf("RecordDirect repeat: %v", err)
	}
	if err := RecordDirect("bob", "alice"); err != nil {
		t.Fatalf("RecordDirect reverse: %v", err)
	}

	ap, err := ListPeers("alice")
	if err != nil {
		t.Fatalf("ListPeers alice: %v", err)
	}
	bp, err := ListPeers("bob")
	if err != nil {
		t.Fatalf("ListPeers bob: %v", err)
	}
	if len(ap) != 1 || ap[0] != "bob" {
		t.Fatalf("alice peers = %v, want [bob]", ap)
	}
	if len(bp) != 1 || bp[0] != "alice" {
		t.Fatalf("bob peers = %v, want [alice]", bp)
	}
}

func TestListPeersUnknownUser(t *testing.T) {
	openTestDB(t)

	peers, err := ListPeers("nobody")
	if err != nil {
		t.Fatalf("ListPeers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("ListPeers unknown = %v, want empty", peers)
	}
}

func TestGroupIndex(t *testing.T) {
	openTestDB(t)

	if err := AddGroup("u1", "group_a"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := AddGroup("u1", "group_a"); err != nil {
		t.Fatalf("AddGroup repeat: %v", err)
	}
	if err := AddGroup("u1", "group_b"); err != nil {
		t.Fatalf("AddGroup b: %v", err)
	}

	gs, err := ListGroups("u1")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(gs) != 2 {
		t.Fatalf("ListGroups = %v, want 2 entries", gs)
	}

	if err := RemoveGroup("u1", "group_a"); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}
	// removing an absent entry is a no-op
	if err := RemoveGroup("u1", "group_a"); err != nil {
		t.Fatalf("RemoveGroup repeat: %v", err)
	}
	gs, _ = ListGroups("u1")
	if len(gs) != 1 || gs[0] != "group_b" {
		t.Fatalf("ListGroups after remove = %v, want [group_b]", gs)
	}
}

func TestRemoveUserLeavesPeerSetsUntouched(t *testing.T) {
	openTestDB(t)

	if err := RecordDirect("gone", "stays"); err != nil {
		t.Fatalf("RecordDirect: %v", err)
	}
	if err := AddGroup("gone", "group_x"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}

	if err := RemoveUser("gone"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}

	if peers, _ := ListPeers("gone"); len(peers) != 0 {
		t.Fatalf("deleted user's peers remain: %v", peers)
	}
	if gs, _ := ListGroups("gone"); len(gs) != 0 {
		t.Fatalf("deleted user's groups remain: %v", gs)
	}
	// the surviving side keeps a dangling entry until the sweep prunes it
	peers, _ := ListPeers("stays")
	if len(peers) != 1 || peers[0] != "gone" {
		t.Fatalf("surviving peer set = %v, want dangling [gone]", peers)
	}
}

func TestCorruptIndexEntryReadsAsEmpty(t *testing.T) {
	openTestDB(t)

	if err := store.Set(PeersKeyPrefix()+"broken", "not-json"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	peers, err := ListPeers("broken")
	if err != nil {
		t.Fatalf("ListPeers corrupt: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("corrupt entry produced peers: %v", peers)
	}
}
