package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"courier/internal/reconcile"
	"courier/pkg/admin"
	"courier/pkg/groups"
	"courier/pkg/logger"
	"courier/pkg/users"
	"courier/pkg/utils"
)

// AdminCheck reports whether the caller is on the administrator
// allow-list. Unlike the rest of the admin surface it answers any
// authenticated caller.
func AdminCheck(agg *admin.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			IsAdmin bool `json:"isAdmin"`
		}{IsAdmin: agg.IsAdmin(id.Email)})
	}
}

// RegisterAdmin registers the moderation surface onto the admin-gated
// subrouter.
func RegisterAdmin(r *mux.Router, agg *admin.Aggregator) {
	r.HandleFunc("/users", adminListUsers(agg)).Methods(http.MethodGet)
	r.HandleFunc("/user/{id}", adminDeleteUser(agg)).Methods(http.MethodDelete)
	r.HandleFunc("/groups", adminListGroups(agg)).Methods(http.MethodGet)
	r.HandleFunc("/group/{id}", adminDeleteGroup(agg)).Methods(http.MethodDelete)
	r.HandleFunc("/stats", adminStats(agg)).Methods(http.MethodGet)
	r.HandleFunc("/reconcile", adminReconcile).Methods(http.MethodPost)
	logger.Info("admin_routes_registered")
}

func adminListUsers(agg *admin.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := agg.ListUsersWithAudit()
		if err != nil {
			internalError(w)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Users []admin.UserAudit `json:"users"`
		}{Users: out})
	}
}

func adminDeleteUser(agg *admin.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		target := mux.Vars(r)["id"]
		err := agg.DeleteUser(id, target)
		switch {
		case err == nil:
			_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
		case errors.Is(err, admin.ErrDeleteSelf), errors.Is(err, admin.ErrDeleteAdmin):
			utils.JSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, users.ErrNotFound):
			utils.JSONError(w, http.StatusNotFound, "user not found")
		default:
			logger.Error("admin_user_delete_failed", "target", target, "error", err)
			internalError(w)
		}
	}
}

func adminListGroups(agg *admin.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := agg.ListGroupsWithAudit()
		if err != nil {
			internalError(w)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Groups []admin.GroupAudit `json:"groups"`
		}{Groups: out})
	}
}

func adminDeleteGroup(agg *admin.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := mux.Vars(r)["id"]
		err := agg.DeleteGroup(target)
		switch {
		case err == nil:
			_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
		case errors.Is(err, groups.ErrNotFound):
			utils.JSONError(w, http.StatusNotFound, "group not found")
		default:
			logger.Error("admin_group_delete_failed", "target", target, "error", err)
			internalError(w)
		}
	}
}

func adminStats(agg *admin.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := agg.ComputeStats()
		if err != nil {
			internalError(w)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, s)
	}
}

// adminReconcile triggers an on-demand sweep. ?dry_run=true only counts.
func adminReconcile(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"
	rep, err := reconcile.RunOnce(r.Context(), dryRun)
	if err != nil {
		logger.Error("reconcile_failed", "error", err)
		internalError(w)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, rep)
}
