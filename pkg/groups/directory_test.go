package groups

import (
	"errors"
	"testing"

	"courier/pkg/convo"
	"courier/pkg/messages"
	"courier/pkg/models"
	"courier/pkg/store"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestIsGroupID(t *testing.T) {
	if !IsGroupID("group_abc") {
		t.Fatalf("group_abc not recognized")
	}
	for _, id := range []string{"user-123", "group_", "", "grou"} {
		if IsGroupID(id) {
			t.Fatalf("%q recognized as group id", id)
		}
	}
}

func TestCreateDedupsAndOrdersCreatorFirst(t *testing.T) {
	openTestDB(t)

	g, err := Create("team", "creator", []string{"m1", "creator", "m2", "m1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !IsGroupID(g.ID) {
		t.Fatalf("group id %q missing prefix", g.ID)
	}
	want := []string{"creator", "m1", "m2"}
	if len(g.MemberIDs) != len(want) {
		t.Fatalf("members = %v, want %v", g.MemberIDs, want)
	}
	for i := range want {
		if g.MemberIDs[i] != want[i] {
			t.Fatalf("members = %v, want %v", g.MemberIDs, want)
		}
	}
	if g.CreatedBy != "creator" || g.CreatedAt == 0 {
		t.Fatalf("metadata not set: %+v", g)
	}

	// every member is indexed
	for _, m := range want {
		gs, err := convo.ListGroups(m)
		if err != nil {
			t.Fatalf("ListGroups %s: %v", m, err)
		}
		if len(gs) != 1 || gs[0] != g.ID {
			t.Fatalf("member %s index = %v, want [%s]", m, gs, g.ID)
		}
	}

	got, err := Get(g.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "team" {
		t.Fatalf("Get name = %q, want team", got.Name)
	}
}

func TestGetNotFound(t *testing.T) {
	openTestDB(t)

	if _, err := Get("group_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	openTestDB(t)

	g, err := Create("doomed", "owner", []string{"member"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := messages.Append(models.Message{FromUserID: "owner", GroupID: g.ID, Text: "hello", Timestamp: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := Delete(g.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := Get(g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("group record survived: %v", err)
	}
	for _, m := range []string{"owner", "member"} {
		if gs, _ := convo.ListGroups(m); len(gs) != 0 {
			t.Fatalf("member %s index survived: %v", m, gs)
		}
	}
	if n, _ := messages.CountForGroup(g.ID); n != 0 {
		t.Fatalf("group messages survived: %d", n)
	}

	if err := Delete(g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestRemoveMember(t *testing.T) {
	openTestDB(t)

	g, err := Create("shrinking", "owner", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := RemoveMember(g.ID, "a"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	got, err := Get(g.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.HasMember("a") || !got.HasMember("b") || !got.HasMember("owner") {
		t.Fatalf("members after remove = %v", got.MemberIDs)
	}
	// removing a non-member is a no-op
	if err := RemoveMember(g.ID, "nobody"); err != nil {
		t.Fatalf("RemoveMember non-member: %v", err)
	}
}

func TestListAndCount(t *testing.T) {
	openTestDB(t)

	if _, err := Create("g1", "u", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := Create("g2", "u", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	all, err := List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List = %d groups, want 2", len(all))
	}
	if n, _ := Count(); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
}
