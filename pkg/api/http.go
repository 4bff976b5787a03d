// Package api builds the HTTP router. Authentication and rate limiting
// happen in the auth gateway wrapped around this router by internal/app.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"courier/pkg/admin"
	"courier/pkg/api/handlers"
	"courier/pkg/auth"
	"courier/pkg/identity"
)

// Deps carries the constructed collaborators into the handlers.
type Deps struct {
	Provider   *identity.Provider
	Aggregator *admin.Aggregator
}

// Router assembles all application routes.
func Router(d Deps) *mux.Router {
	r := mux.NewRouter()

	handlers.RegisterAuth(r, d.Provider, d.Aggregator)
	handlers.RegisterUsers(r)
	handlers.RegisterMessaging(r)
	handlers.RegisterGroups(r)

	// /admin/check only needs a valid token; the rest of /admin is gated.
	r.HandleFunc("/admin/check", handlers.AdminCheck(d.Aggregator)).Methods(http.MethodGet)
	adminSub := r.PathPrefix("/admin").Subrouter()
	adminSub.Use(auth.RequireAdmin(d.Aggregator.IsAdmin))
	handlers.RegisterAdmin(adminSub, d.Aggregator)

	return r
}
