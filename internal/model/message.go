package model

import "time"

// Role tags who produced a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one row of a user's append-only conversation log.
// IDs are assigned by the store and increase monotonically.
type Message struct {
	ID        int64     `json:"-"`
	UserID    string    `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"-"`
}

// ChatMessage is the role/content pair exchanged with the completion API and
// returned to the UI.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
