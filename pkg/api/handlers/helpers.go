package handlers

import (
	"net/http"

	"courier/pkg/auth"
	"courier/pkg/identity"
	"courier/pkg/utils"
)

// caller pulls the verified identity off the context, writing a 401 and
// returning false when the gateway did not inject one.
func caller(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return identity.Identity{}, false
	}
	return id, true
}

// internalError hides unexpected failures behind a generic message.
func internalError(w http.ResponseWriter) {
	utils.JSONError(w, http.StatusInternalServerError, "internal error")
}
