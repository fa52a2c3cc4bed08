package llm

import (
	"nyayachat/internal/models"

	openai "github.com/sashabaranov/go-openai"
)

// systemPrompt is the fixed instruction block. It must always be the first
// message sent upstream; the model's persona routing and the client-side
// metadata extraction both depend on it.
const systemPrompt = `You are NyayaChat, a legal guidance assistant for Indian citizens. ` +
	`You help people understand their rights under Indian law, including the Bharatiya Nyaya Sanhita, ` +
	`the Consumer Protection Act, the Information Technology Act, and family law statutes. ` +
	`Route each query to the most fitting internal persona: "FIR Specialist" for police complaints and FIR drafting, ` +
	`"Consumer Grievance Advisor" for consumer disputes, "Cyber Crime Advisor" for online fraud and harassment, ` +
	`"Family Law Advisor" for marriage, divorce, and maintenance matters, or "Legal Assistant" for anything else. ` +
	`Begin every answer with two lines: "Responding Agent: <persona>" and "Confidence: HIGH, MEDIUM or LOW". ` +
	`Cite relevant sections where you can. You provide general guidance, not a substitute for a licensed advocate.`

// Turn is one sanitized conversation turn handed to the composer.
type Turn struct {
	Role    models.Role
	Content string
}

// Compose builds the upstream message list: the system instruction block
// first, then every turn in its original order. Turns are never reordered
// or deduplicated; the last turn is the new user input.
func Compose(turns []Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return msgs
}
