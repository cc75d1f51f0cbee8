package session

import "time"

// Role identifies who produced a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Entry persists individual turns for audit/debug.
type Entry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}
