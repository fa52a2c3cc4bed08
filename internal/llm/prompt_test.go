package llm

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"nyayachat/internal/models"
)

func TestComposePutsSystemPromptFirst(t *testing.T) {
	msgs := Compose([]Turn{{Role: models.RoleUser, Content: "hello"}})
	if len(msgs) != 2 {
		t.Fatalf("composed %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("first message role = %q, want system", msgs[0].Role)
	}
	if msgs[0].Content != systemPrompt {
		t.Fatal("first message is not the system instruction block")
	}
}

func TestComposePreservesOrderWithoutDeduplication(t *testing.T) {
	turns := []Turn{
		{Role: models.RoleUser, Content: "u1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "u2"},
		{Role: models.RoleUser, Content: "u2"},
	}
	msgs := Compose(turns)
	if len(msgs) != len(turns)+1 {
		t.Fatalf("composed %d messages, want %d", len(msgs), len(turns)+1)
	}
	for i, turn := range turns {
		got := msgs[i+1]
		if got.Role != string(turn.Role) || got.Content != turn.Content {
			t.Fatalf("message %d = (%q, %q), want (%q, %q)", i+1, got.Role, got.Content, turn.Role, turn.Content)
		}
	}
}

func TestComposeEmptyHistoryStillHasSystemPrompt(t *testing.T) {
	msgs := Compose(nil)
	if len(msgs) != 1 || msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("composed %v for empty history", msgs)
	}
}
