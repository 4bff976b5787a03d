package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"courier/pkg/groups"
	"courier/pkg/users"
	"courier/pkg/utils"
	"courier/pkg/validation"
)

// RegisterGroups registers group creation. Membership has no standalone
// mutation API; it only changes through deletion cascades.
func RegisterGroups(r *mux.Router) {
	r.HandleFunc("/create-group", createGroup).Methods(http.MethodPost)
}

func createGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Name      string   `json:"name"`
		MemberIDs []string `json:"memberIds"`
	}
	if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateCreateGroup(req.Name, req.MemberIDs); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, m := range req.MemberIDs {
		if _, err := users.Get(m); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				utils.JSONError(w, http.StatusNotFound, "member not found: "+m)
				return
			}
			internalError(w)
			return
		}
	}
	g, err := groups.Create(req.Name, id.ID, req.MemberIDs)
	if err != nil {
		internalError(w)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, g)
}
