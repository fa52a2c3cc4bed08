package chatstream

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"nyayachat/internal/models"
)

// DefaultAgentName is shown until the assistant announces a persona.
const DefaultAgentName = "Legal Assistant"

// Disclaimer is appended as a system message once an assistant reply
// completes.
const Disclaimer = "This guidance is for general awareness only and is not a substitute for advice from a licensed advocate."

var (
	agentMarkerRe      = regexp.MustCompile(`(?mi)^\s*\**\s*Responding Agent\s*\**\s*:\s*\**\s*([^*\n]+?)\s*\**\s*$`)
	confidenceMarkerRe = regexp.MustCompile(`(?i)\**\s*Confidence\s*\**\s*:\s*\**\s*(HIGH|MEDIUM|LOW)\b`)
)

// Metadata is the display state derived from accumulated assistant
// content.
type Metadata struct {
	AgentName  string
	Confidence models.Confidence
}

// DeriveMetadata scans the full accumulated content and returns the
// agent name and confidence announced by the reply. It is a pure
// function of content: calling it after every token or only once at
// the end yields the same result. When a marker appears more than
// once, the last occurrence wins.
func DeriveMetadata(content string) Metadata {
	meta := Metadata{AgentName: DefaultAgentName}

	if matches := agentMarkerRe.FindAllStringSubmatch(content, -1); len(matches) > 0 {
		name := strings.TrimSpace(matches[len(matches)-1][1])
		if name != "" {
			meta.AgentName = name
		}
	}
	if matches := confidenceMarkerRe.FindAllStringSubmatch(content, -1); len(matches) > 0 {
		meta.Confidence = models.Confidence(strings.ToUpper(matches[len(matches)-1][1]))
	}
	return meta
}

// ChatMessage is a message in the client-side transcript. Messages get
// a temporary local ID until the server assigns a durable one.
type ChatMessage struct {
	ID         string            `json:"id"`
	Role       models.Role       `json:"role"`
	Content    string            `json:"content"`
	AgentName  string            `json:"agent_name,omitempty"`
	Confidence models.Confidence `json:"confidence,omitempty"`
	Pending    bool              `json:"pending,omitempty"`
}

func newLocalID() string {
	return "tmp-" + uuid.NewString()
}

// NewUserMessage builds the optimistic local copy of a user turn.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{
		ID:      newLocalID(),
		Role:    models.RoleUser,
		Content: content,
		Pending: true,
	}
}

// NewAssistantMessage builds an empty in-progress assistant reply.
func NewAssistantMessage() ChatMessage {
	return ChatMessage{
		ID:        newLocalID(),
		Role:      models.RoleAssistant,
		AgentName: DefaultAgentName,
		Pending:   true,
	}
}

// NewSystemMessage builds a local system notice such as the disclaimer.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{
		ID:      newLocalID(),
		Role:    models.RoleSystem,
		Content: content,
	}
}

// Append extends the assistant reply with one token and refreshes the
// derived metadata from the full accumulated content.
func (m *ChatMessage) Append(token string) {
	m.Content += token
	meta := DeriveMetadata(m.Content)
	m.AgentName = meta.AgentName
	m.Confidence = meta.Confidence
}

// Finish marks the reply complete and settles its metadata.
func (m *ChatMessage) Finish() {
	meta := DeriveMetadata(m.Content)
	m.AgentName = meta.AgentName
	m.Confidence = meta.Confidence
	m.Pending = false
}
