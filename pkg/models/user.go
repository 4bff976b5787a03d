package models

// User is the public profile record stored under user:<id>. Credentials
// live with the identity provider, never here.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
