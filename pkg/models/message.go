package models

// Message is either a direct message (ToUserID set) or a group message
// (GroupID set); exactly one of the two is non-empty. Timestamp is Unix
// milliseconds. Messages are immutable once written; they only ever go
// away through user or group deletion cascades.
type Message struct {
	ID         string `json:"id"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// IsDirect reports whether the message is a DM.
func (m Message) IsDirect() bool { return m.ToUserID != "" }
