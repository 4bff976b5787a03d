// Package reconcile is the audit sweep for the non-transactional multi-key
// writes. Cascades and symmetric index updates have no rollback, so a
// crash can leave asymmetric peer sets, dangling peer ids, mismatched
// group back-references and index entries for deleted groups. The sweep
// walks the index keyspaces and repairs all four, on a cron schedule or on
// demand from the admin surface.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"courier/pkg/config"
	"courier/pkg/convo"
	"courier/pkg/groups"
	"courier/pkg/logger"
	"courier/pkg/store"
	"courier/pkg/telemetry"
	"courier/pkg/users"
)

// Report summarizes one sweep run.
type Report struct {
	PeerSymmetry  int  `json:"peerSymmetryRepaired"`
	DanglingPeers int  `json:"danglingPeersRemoved"`
	GroupBackrefs int  `json:"groupBackrefsRepaired"`
	DeadGroupRefs int  `json:"deadGroupRefsRemoved"`
	GhostMembers  int  `json:"ghostMembersRemoved"`
	DryRun        bool `json:"dryRun"`
}

func (r Report) total() int {
	return r.PeerSymmetry + r.DanglingPeers + r.GroupBackrefs + r.DeadGroupRefs + r.GhostMembers
}

// Start launches the cron scheduler when enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.ReconcileConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("reconcile_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("reconcile_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid reconcile cron expression: %s", cfg.Cron)
	}
	logger.Info("reconcile_enabled", "cron", cronExpr, "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, cfg.DryRun)
	return cancel, nil
}

// runScheduler sleeps until each next cron tick and triggers a run.
func runScheduler(ctx context.Context, cronExpr string, dryRun bool) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("reconcile_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("reconcile_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if _, err := RunOnce(ctx, dryRun); err != nil {
				logger.Error("reconcile_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("reconcile_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a full sweep and returns what it repaired. With dryRun
// set it only counts.
func RunOnce(ctx context.Context, dryRun bool) (Report, error) {
	rep := Report{DryRun: dryRun}
	if err := sweepPeers(ctx, &rep, dryRun); err != nil {
		return rep, err
	}
	if err := sweepGroups(ctx, &rep, dryRun); err != nil {
		return rep, err
	}
	if err := sweepGroupRefs(ctx, &rep, dryRun); err != nil {
		return rep, err
	}
	if !dryRun {
		telemetry.ReconcileRepairs.Add(float64(rep.total()))
	}
	logger.Info("reconcile_run_done",
		"peer_symmetry", rep.PeerSymmetry,
		"dangling_peers", rep.DanglingPeers,
		"group_backrefs", rep.GroupBackrefs,
		"dead_group_refs", rep.DeadGroupRefs,
		"ghost_members", rep.GhostMembers,
		"dry_run", dryRun,
	)
	return rep, nil
}

// sweepPeers restores peer-set symmetry and prunes peers whose profile is
// gone.
func sweepPeers(ctx context.Context, rep *Report, dryRun bool) error {
	keys, err := store.ListKeys(convo.PeersKeyPrefix())
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		uid := strings.TrimPrefix(k, convo.PeersKeyPrefix())
		peers, err := convo.ListPeers(uid)
		if err != nil {
			return err
		}
		kept := peers[:0]
		for _, peer := range peers {
			if _, err := users.Get(peer); err != nil {
				rep.DanglingPeers++
				continue
			}
			kept = append(kept, peer)
			back, err := convo.ListPeers(peer)
			if err != nil {
				return err
			}
			if !contains(back, uid) {
				rep.PeerSymmetry++
				if !dryRun {
					if err := convo.SetPeers(peer, append(back, uid)); err != nil {
						return err
					}
				}
			}
		}
		if len(kept) != len(peers) && !dryRun {
			if err := convo.SetPeers(uid, kept); err != nil {
				return err
			}
		}
	}
	return nil
}

// sweepGroups ensures every live member carries the group in its index and
// strips members whose profile is gone.
func sweepGroups(ctx context.Context, rep *Report, dryRun bool) error {
	all, err := groups.List()
	if err != nil {
		return err
	}
	for _, g := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, m := range g.MemberIDs {
			if _, err := users.Get(m); err != nil {
				rep.GhostMembers++
				if !dryRun {
					if err := groups.RemoveMember(g.ID, m); err != nil {
						return err
					}
				}
				continue
			}
			idx, err := convo.ListGroups(m)
			if err != nil {
				return err
			}
			if !contains(idx, g.ID) {
				rep.GroupBackrefs++
				if !dryRun {
					if err := convo.AddGroup(m, g.ID); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// sweepGroupRefs drops user_groups entries that point at deleted groups.
func sweepGroupRefs(ctx context.Context, rep *Report, dryRun bool) error {
	keys, err := store.ListKeys(convo.GroupsKeyPrefix())
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		uid := strings.TrimPrefix(k, convo.GroupsKeyPrefix())
		ids, err := convo.ListGroups(uid)
		if err != nil {
			return err
		}
		kept := ids[:0]
		for _, gid := range ids {
			if _, err := groups.Get(gid); err != nil {
				rep.DeadGroupRefs++
				continue
			}
			kept = append(kept, gid)
		}
		if len(kept) != len(ids) && !dryRun {
			if err := convo.SetGroups(uid, kept); err != nil {
				return err
			}
		}
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
