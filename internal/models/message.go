package models

import "time"

// Message captures an individual turn stored in the conversation history.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRole reports whether r is one of the three allowed roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Confidence is the certainty marker extracted from assistant output.
// Empty when the marker never appeared in the text.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

type Message struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	ConversationID int64      `json:"conversation_id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	AgentName      string     `json:"agent_name,omitempty"`
	Confidence     Confidence `json:"confidence,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
