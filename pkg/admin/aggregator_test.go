package admin

import (
	"errors"
	"testing"
	"time"

	"courier/pkg/convo"
	"courier/pkg/groups"
	"courier/pkg/identity"
	"courier/pkg/messages"
	"courier/pkg/models"
	"courier/pkg/store"
	"courier/pkg/users"
)

func newTestAggregator(t *testing.T) (*Aggregator, *identity.Provider) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	p := identity.New("test-secret", time.Hour, nil)
	return New([]string{"Admin@Example.com"}, p), p
}

// register creates an account plus profile, the way the signup handler does.
func register(t *testing.T, p *identity.Provider, email, name string) models.User {
	t.Helper()
	id, err := p.Signup(email, "password1")
	if err != nil {
		t.Fatalf("Signup %s: %v", email, err)
	}
	u := models.User{ID: id, Email: email, Name: name}
	if err := users.Save(u); err != nil {
		t.Fatalf("Save %s: %v", email, err)
	}
	return u
}

func TestIsAdminNormalizesEmail(t *testing.T) {
	agg, _ := newTestAggregator(t)

	if !agg.IsAdmin("admin@example.com") {
		t.Fatalf("lowercased admin email not recognized")
	}
	if !agg.IsAdmin("  ADMIN@EXAMPLE.COM  ") {
		t.Fatalf("padded uppercase admin email not recognized")
	}
	if agg.IsAdmin("user@example.com") {
		t.Fatalf("non-admin recognized as admin")
	}
}

func TestDeleteUserGuards(t *testing.T) {
	agg, p := newTestAggregator(t)

	adminUser := register(t, p, "admin@example.com", "Admin")
	otherAdmin := New([]string{"admin@example.com", "second@example.com"}, p)
	second := register(t, p, "second@example.com", "Second")

	actor := identity.Identity{ID: adminUser.ID, Email: adminUser.Email}

	if err := agg.DeleteUser(actor, adminUser.ID); !errors.Is(err, ErrDeleteSelf) {
		t.Fatalf("self delete = %v, want ErrDeleteSelf", err)
	}
	if err := otherAdmin.DeleteUser(actor, second.ID); !errors.Is(err, ErrDeleteAdmin) {
		t.Fatalf("admin delete = %v, want ErrDeleteAdmin", err)
	}
	if err := agg.DeleteUser(actor, "missing-id"); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("missing target = %v, want users.ErrNotFound", err)
	}
}

func TestDeleteUserCascade(t *testing.T) {
	agg, p := newTestAggregator(t)

	adminUser := register(t, p, "admin@example.com", "Admin")
	victim := register(t, p, "victim@example.com", "Victim")
	peer := register(t, p, "peer@example.com", "Peer")

	if _, err := messages.Append(models.Message{FromUserID: victim.ID, ToUserID: peer.ID, Text: "hi", Timestamp: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := convo.RecordDirect(victim.ID, peer.ID); err != nil {
		t.Fatalf("RecordDirect: %v", err)
	}
	g, err := groups.Create("shared", peer.ID, []string{victim.ID})
	if err != nil {
		t.Fatalf("Create group: %v", err)
	}
	if _, err := messages.Append(models.Message{FromUserID: victim.ID, GroupID: g.ID, Text: "group post", Timestamp: 2}); err != nil {
		t.Fatalf("Append group: %v", err)
	}

	actor := identity.Identity{ID: adminUser.ID, Email: adminUser.Email}
	if err := agg.DeleteUser(actor, victim.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if _, err := users.Get(victim.ID); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("profile survived: %v", err)
	}
	if _, _, err := p.Login("victim@example.com", "password1"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("account survived: %v", err)
	}
	if dms, _ := messages.ListDirect(victim.ID, peer.ID); len(dms) != 0 {
		t.Fatalf("DMs survived: %d", len(dms))
	}
	got, err := groups.Get(g.ID)
	if err != nil {
		t.Fatalf("Get group: %v", err)
	}
	if got.HasMember(victim.ID) {
		t.Fatalf("membership survived: %v", got.MemberIDs)
	}
	// group history is retained by policy
	if gm, _ := messages.ListGroup(g.ID); len(gm) != 1 {
		t.Fatalf("group messages = %d, want 1", len(gm))
	}
	// peer keeps a dangling index entry until the sweep prunes it
	if peers, _ := convo.ListPeers(peer.ID); len(peers) != 1 {
		t.Fatalf("peer index = %v", peers)
	}
}

func TestDeleteUserSelfSkipsGuards(t *testing.T) {
	agg, p := newTestAggregator(t)

	adminUser := register(t, p, "admin@example.com", "Admin")
	caller := identity.Identity{ID: adminUser.ID, Email: adminUser.Email}

	// self-service deletion works even for allow-listed admins
	if err := agg.DeleteUserSelf(caller); err != nil {
		t.Fatalf("DeleteUserSelf: %v", err)
	}
	if _, err := users.Get(adminUser.ID); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("profile survived: %v", err)
	}
}

func TestDeleteGroup(t *testing.T) {
	agg, p := newTestAggregator(t)

	owner := register(t, p, "owner@example.com", "Owner")
	g, err := groups.Create("doomed", owner.ID, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := agg.DeleteGroup(g.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if err := agg.DeleteGroup(g.ID); !errors.Is(err, groups.ErrNotFound) {
		t.Fatalf("second DeleteGroup = %v, want ErrNotFound", err)
	}
}

func TestListUsersWithAudit(t *testing.T) {
	agg, p := newTestAggregator(t)

	register(t, p, "admin@example.com", "Admin")
	register(t, p, "user@example.com", "User")
	// profile without an account record keeps zero audit fields
	if err := users.Save(models.User{ID: "orphan", Email: "orphan@example.com", Name: "Orphan"}); err != nil {
		t.Fatalf("Save orphan: %v", err)
	}

	audits, err := agg.ListUsersWithAudit()
	if err != nil {
		t.Fatalf("ListUsersWithAudit: %v", err)
	}
	if len(audits) != 3 {
		t.Fatalf("audits = %d, want 3", len(audits))
	}
	byEmail := map[string]UserAudit{}
	for _, a := range audits {
		byEmail[a.Email] = a
	}
	if !byEmail["admin@example.com"].IsAdmin {
		t.Fatalf("admin flag missing")
	}
	if byEmail["user@example.com"].IsAdmin {
		t.Fatalf("non-admin flagged")
	}
	if byEmail["user@example.com"].CreatedAt == 0 {
		t.Fatalf("audit metadata missing for registered user")
	}
	if byEmail["orphan@example.com"].CreatedAt != 0 {
		t.Fatalf("orphan gained audit metadata")
	}
}

func TestListGroupsWithAuditAndStats(t *testing.T) {
	agg, p := newTestAggregator(t)

	owner := register(t, p, "owner@example.com", "Owner")
	g, err := groups.Create("audited", owner.ID, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := messages.Append(models.Message{FromUserID: owner.ID, GroupID: g.ID, Text: "x", Timestamp: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := messages.Append(models.Message{FromUserID: owner.ID, ToUserID: "someone", Text: "y", Timestamp: 2}); err != nil {
		t.Fatalf("Append dm: %v", err)
	}

	gas, err := agg.ListGroupsWithAudit()
	if err != nil {
		t.Fatalf("ListGroupsWithAudit: %v", err)
	}
	if len(gas) != 1 || gas[0].CreatorName != "Owner" || gas[0].MessageCount != 1 {
		t.Fatalf("group audit = %+v", gas)
	}

	s, err := agg.ComputeStats()
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}
	if s.Users != 1 || s.Groups != 1 || s.DirectMessages != 1 || s.GroupMessages != 1 || s.Messages != 2 {
		t.Fatalf("stats = %+v", s)
	}
}
