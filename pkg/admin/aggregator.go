// Package admin is the read-side aggregator and moderation surface. It
// joins profiles, account metadata, groups and message counts, and runs
// the cascading deletes. The administrator allow-list is an immutable set
// injected at construction.
package admin

import (
	"errors"
	"strings"

	"courier/pkg/convo"
	"courier/pkg/groups"
	"courier/pkg/identity"
	"courier/pkg/logger"
	"courier/pkg/messages"
	"courier/pkg/models"
	"courier/pkg/store"
	"courier/pkg/telemetry"
	"courier/pkg/users"
)

var (
	// ErrDeleteSelf guards an admin deleting their own account through the
	// moderation path.
	ErrDeleteSelf = errors.New("administrators cannot delete their own account")
	// ErrDeleteAdmin guards deletion of any allow-listed administrator.
	ErrDeleteAdmin = errors.New("administrator accounts cannot be deleted")
)

// Aggregator joins store-side records for audit views and owns moderation
// cascades.
type Aggregator struct {
	admins   map[string]struct{}
	provider *identity.Provider
}

// New builds an Aggregator with the given administrator email allow-list.
func New(adminEmails []string, provider *identity.Provider) *Aggregator {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Aggregator{admins: admins, provider: provider}
}

// IsAdmin reports whether email is on the allow-list.
func (a *Aggregator) IsAdmin(email string) bool {
	_, ok := a.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// UserAudit is a profile joined with account metadata and the admin flag.
type UserAudit struct {
	models.User
	CreatedAt    int64 `json:"createdAt,omitempty"`
	LastSignInAt int64 `json:"lastSignInAt,omitempty"`
	IsAdmin      bool  `json:"isAdmin"`
}

// ListUsersWithAudit returns every profile annotated with identity-provider
// metadata. A missing account record leaves the audit fields zero rather
// than failing the listing.
func (a *Aggregator) ListUsersWithAudit() ([]UserAudit, error) {
	all, err := users.List()
	if err != nil {
		return nil, err
	}
	out := make([]UserAudit, 0, len(all))
	for _, u := range all {
		ua := UserAudit{User: u, IsAdmin: a.IsAdmin(u.Email)}
		if meta, err := a.provider.Meta(u.Email); err == nil {
			ua.CreatedAt = meta.CreatedAt
			ua.LastSignInAt = meta.LastSignInAt
		}
		out = append(out, ua)
	}
	return out, nil
}

// GroupAudit is a group joined with its creator's name and message count.
type GroupAudit struct {
	models.Group
	CreatorName  string `json:"creatorName,omitempty"`
	MessageCount int    `json:"messageCount"`
}

// ListGroupsWithAudit returns every group annotated with creator name and
// per-group message count. Missing creator profiles are skipped, not
// errors: user deletion does not rewrite group history.
func (a *Aggregator) ListGroupsWithAudit() ([]GroupAudit, error) {
	all, err := groups.List()
	if err != nil {
		return nil, err
	}
	out := make([]GroupAudit, 0, len(all))
	for _, g := range all {
		ga := GroupAudit{Group: g}
		if creator, err := users.Get(g.CreatedBy); err == nil {
			ga.CreatorName = creator.Name
		}
		if n, err := messages.CountForGroup(g.ID); err == nil {
			ga.MessageCount = n
		}
		out = append(out, ga)
	}
	return out, nil
}

// Stats are the aggregate counts for the admin dashboard.
type Stats struct {
	Users          int    `json:"users"`
	Groups         int    `json:"groups"`
	Messages       int    `json:"messages"`
	DirectMessages int    `json:"directMessages"`
	GroupMessages  int    `json:"groupMessages"`
	DiskBytes      uint64 `json:"diskBytes"`
}

// ComputeStats scans the relevant keyspaces for aggregate counts.
func (a *Aggregator) ComputeStats() (Stats, error) {
	var s Stats
	var err error
	if s.Users, err = users.Count(); err != nil {
		return s, err
	}
	if s.Groups, err = groups.Count(); err != nil {
		return s, err
	}
	if s.DirectMessages, s.GroupMessages, err = messages.CountByKind(); err != nil {
		return s, err
	}
	s.Messages = s.DirectMessages + s.GroupMessages
	s.DiskBytes = store.DiskUsage()
	return s, nil
}

// DeleteUser runs the user-deletion cascade as an ordered list of steps:
// account, profile, conversation indices, group memberships, DM messages.
// The first failing step aborts and surfaces; completed steps stay done.
// Group messages authored by the target are retained (documented policy).
func (a *Aggregator) DeleteUser(actor identity.Identity, targetID string) error {
	target, err := users.Get(targetID)
	if err != nil {
		return err
	}
	if target.ID == actor.ID {
		return ErrDeleteSelf
	}
	if a.IsAdmin(target.Email) {
		return ErrDeleteAdmin
	}

	logger.Info("user_cascade_start", "actor", actor.ID, "target", targetID)
	if err := a.provider.Delete(target.Email); err != nil && !errors.Is(err, identity.ErrNotFound) {
		return err
	}
	if err := users.Delete(targetID); err != nil {
		return err
	}
	if err := convo.RemoveUser(targetID); err != nil {
		return err
	}
	all, err := groups.List()
	if err != nil {
		return err
	}
	for _, g := range all {
		if !g.HasMember(targetID) {
			continue
		}
		if err := groups.RemoveMember(g.ID, targetID); err != nil {
			return err
		}
	}
	if _, err := messages.DeleteAllForUser(targetID); err != nil {
		return err
	}
	telemetry.CascadeDeletes.WithLabelValues("user").Inc()
	logger.Info("user_cascade_done", "target", targetID)
	return nil
}

// DeleteUserSelf runs the self-service variant of the cascade: no
// protected-account guards, the caller deletes themselves.
func (a *Aggregator) DeleteUserSelf(caller identity.Identity) error {
	if err := a.provider.Delete(caller.Email); err != nil && !errors.Is(err, identity.ErrNotFound) {
		return err
	}
	if err := users.Delete(caller.ID); err != nil && !errors.Is(err, users.ErrNotFound) {
		return err
	}
	if err := convo.RemoveUser(caller.ID); err != nil {
		return err
	}
	all, err := groups.List()
	if err != nil {
		return err
	}
	for _, g := range all {
		if !g.HasMember(caller.ID) {
			continue
		}
		if err := groups.RemoveMember(g.ID, caller.ID); err != nil {
			return err
		}
	}
	if _, err := messages.DeleteAllForUser(caller.ID); err != nil {
		return err
	}
	telemetry.CascadeDeletes.WithLabelValues("user").Inc()
	logger.Info("user_self_delete_done", "user", caller.ID)
	return nil
}

// DeleteGroup cascades a group deletion through the group directory.
func (a *Aggregator) DeleteGroup(targetID string) error {
	if err := groups.Delete(targetID); err != nil {
		return err
	}
	telemetry.CascadeDeletes.WithLabelValues("group").Inc()
	return nil
}
