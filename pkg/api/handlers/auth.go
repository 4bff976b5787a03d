package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"courier/pkg/admin"
	"courier/pkg/identity"
	"courier/pkg/logger"
	"courier/pkg/models"
	"courier/pkg/users"
	"courier/pkg/utils"
	"courier/pkg/validation"
)

// RegisterAuth registers the credential endpoints: signup, login, resets,
// password rotation and self-service account deletion.
func RegisterAuth(r *mux.Router, p *identity.Provider, agg *admin.Aggregator) {
	r.HandleFunc("/signup", signup(p)).Methods(http.MethodPost)
	r.HandleFunc("/login", login(p)).Methods(http.MethodPost)
	r.HandleFunc("/reset-password", resetPassword(p)).Methods(http.MethodPost)
	r.HandleFunc("/reset-password/complete", resetPasswordComplete(p)).Methods(http.MethodPost)
	r.HandleFunc("/user/password", changePassword(p)).Methods(http.MethodPut)
	r.HandleFunc("/user/account", deleteAccount(p, agg)).Methods(http.MethodDelete)
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func signup(p *identity.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}
		if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := validation.ValidateSignup(req.Email, req.Password, req.Name); err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := p.Signup(req.Email, req.Password)
		if err != nil {
			if errors.Is(err, identity.ErrExists) {
				utils.JSONError(w, http.StatusBadRequest, "account already exists")
				return
			}
			internalError(w)
			return
		}
		u := models.User{ID: id, Email: req.Email, Name: req.Name}
		if err := users.Save(u); err != nil {
			// account exists but the profile write failed; surfaced as-is,
			// the reconcile story does not cover half-created users
			internalError(w)
			return
		}
		tok, err := p.IssueToken(u.ID, u.Email)
		if err != nil {
			internalError(w)
			return
		}
		_ = utils.JSONWrite(w, http.StatusCreated, sessionResponse{Token: tok, User: u})
	}
}

func login(p *identity.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		tok, id, err := p.Login(req.Email, req.Password)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				utils.JSONError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			internalError(w)
			return
		}
		u, err := users.Get(id.ID)
		if err != nil {
			u = models.User{ID: id.ID, Email: id.Email}
		}
		_ = utils.JSONWrite(w, http.StatusOK, sessionResponse{Token: tok, User: u})
	}
}

// resetPassword always reports success so callers cannot probe which
// emails are registered.
func resetPassword(p *identity.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := p.RequestReset(req.Email); err != nil {
			logger.Error("reset_request_failed", "error", err)
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{
			"status": "ok",
			"message": "if the account exists, reset instructions have been sent",
		})
	}
}

func resetPasswordComplete(p *identity.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token       string `json:"token"`
			NewPassword string `json:"newPassword"`
		}
		if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if len(req.NewPassword) < 8 {
			utils.JSONError(w, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		if err := p.CompleteReset(req.Token, req.NewPassword); err != nil {
			if errors.Is(err, identity.ErrBadToken) {
				utils.JSONError(w, http.StatusBadRequest, "invalid or expired reset token")
				return
			}
			internalError(w)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func changePassword(p *identity.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var req struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if len(req.NewPassword) < 8 {
			utils.JSONError(w, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		if err := p.ChangePassword(id.Email, req.CurrentPassword, req.NewPassword); err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				utils.JSONError(w, http.StatusForbidden, "current password is incorrect")
				return
			}
			internalError(w)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// deleteAccount re-authenticates with the password, then runs the same
// cascade the admin path uses, minus the protected-account guards.
func deleteAccount(p *identity.Provider, agg *admin.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var req struct {
			Password string `json:"password"`
		}
		if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := p.VerifyPassword(id.Email, req.Password); err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				utils.JSONError(w, http.StatusForbidden, "password is incorrect")
				return
			}
			internalError(w)
			return
		}
		if err := agg.DeleteUserSelf(id); err != nil {
			internalError(w)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
