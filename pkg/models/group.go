package models

// Group is stored under group:<id>. MemberIDs is an ordered set with the
// creator always first. CreatedAt is Unix milliseconds.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
	CreatedBy string   `json:"createdBy"`
	CreatedAt int64    `json:"createdAt"`
}

// HasMember reports whether id is in the member list.
func (g Group) HasMember(id string) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
