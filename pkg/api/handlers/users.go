package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"courier/pkg/models"
	"courier/pkg/users"
	"courier/pkg/utils"
	"courier/pkg/validation"
)

// RegisterUsers registers profile endpoints.
func RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users", listUsers).Methods(http.MethodGet)
	r.HandleFunc("/user/profile", updateProfile).Methods(http.MethodPut)
	r.HandleFunc("/user/{userId}", getUser).Methods(http.MethodGet)
}

// listUsers returns every profile except the caller's own.
func listUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	all, err := users.List()
	if err != nil {
		internalError(w)
		return
	}
	out := make([]models.User, 0, len(all))
	for _, u := range all {
		if u.ID == id.ID {
			continue
		}
		out = append(out, u)
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Users []models.User `json:"users"`
	}{Users: out})
}

func getUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	u, err := users.Get(mux.Vars(r)["userId"])
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

func updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateName(req.Name); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := users.UpdateName(id.ID, req.Name)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}
