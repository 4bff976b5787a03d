package models

// Conversation kinds.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Conversation is a derived view entry, never persisted. For direct
// conversations ID is the peer's user id; for groups the group id.
// Recomputed from the index and message keyspaces on every request.
type Conversation struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	LatestMessage string `json:"latestMessage,omitempty"`
	LatestTS      int64  `json:"latestTimestamp,omitempty"`
	MemberCount   int    `json:"memberCount,omitempty"`
}
