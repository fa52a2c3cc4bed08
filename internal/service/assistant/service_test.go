package assistant

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"nyayachat/internal/models"
	"nyayachat/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "ravi", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID <= 0 || user.Username != "ravi" {
		t.Fatalf("user = %+v", user)
	}

	got, err := svc.Login(ctx, "ravi", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned user %d, want %d", got.ID, user.ID)
	}

	if _, err := svc.Login(ctx, "ravi", "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
	if _, err := svc.Login(ctx, "nobody", "secret123"); err == nil {
		t.Fatal("unknown user accepted")
	}
	if _, err := svc.RegisterUser(ctx, "ravi", "other"); err == nil {
		t.Fatal("duplicate username accepted")
	}
	if _, err := svc.RegisterUser(ctx, " ", "pw"); err == nil {
		t.Fatal("blank username accepted")
	}
}

func TestConversationLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user, err := svc.RegisterUser(ctx, "meera", "pw12345")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	cv, err := svc.CreateConversation(ctx, user.ID, "New Conversation")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	if _, err := svc.AppendMessageToConversation(ctx, user.ID, cv.ID, models.RoleUser, "my landlord kept my deposit", "", ""); err != nil {
		t.Fatalf("append user turn: %v", err)
	}
	if _, err := svc.AppendMessageToConversation(ctx, user.ID, cv.ID, models.RoleAssistant,
		"You can file a consumer complaint.", "Consumer Grievance Advisor", models.ConfidenceMedium); err != nil {
		t.Fatalf("append assistant turn: %v", err)
	}

	got, messages, err := svc.GetConversationWithMessages(ctx, user.ID, cv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.ID != cv.ID {
		t.Fatalf("conversation id = %d", got.ID)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[0].Role != models.RoleUser || messages[1].Role != models.RoleAssistant {
		t.Fatalf("message order wrong: %v then %v", messages[0].Role, messages[1].Role)
	}
	if messages[1].AgentName != "Consumer Grievance Advisor" || messages[1].Confidence != models.ConfidenceMedium {
		t.Fatalf("assistant metadata = (%q, %q)", messages[1].AgentName, messages[1].Confidence)
	}

	list, err := svc.ListConversations(ctx, user.ID)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("conversations = %d, want 1", len(list))
	}

	if err := svc.UpdateConversationTitle(ctx, user.ID, cv.ID, "Deposit Dispute"); err != nil {
		t.Fatalf("update title: %v", err)
	}
	got, _, err = svc.GetConversationWithMessages(ctx, user.ID, cv.ID)
	if err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if got.Title != "Deposit Dispute" {
		t.Fatalf("title = %q", got.Title)
	}

	if err := svc.DeleteConversation(ctx, user.ID, cv.ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if _, _, err := svc.GetConversationWithMessages(ctx, user.ID, cv.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("deleted conversation lookup err = %v, want ErrNoRows", err)
	}
}

func TestAppendMessageEnforcesOwnershipAndValidity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner, _ := svc.RegisterUser(ctx, "owner", "pw12345")
	intruder, _ := svc.RegisterUser(ctx, "intruder", "pw12345")
	cv, err := svc.CreateConversation(ctx, owner.ID, "t")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	if _, err := svc.AppendMessageToConversation(ctx, intruder.ID, cv.ID, models.RoleUser, "hi", "", ""); err == nil {
		t.Fatal("foreign conversation write accepted")
	}
	if _, err := svc.AppendMessageToConversation(ctx, owner.ID, cv.ID, "moderator", "hi", "", ""); err == nil {
		t.Fatal("invalid role accepted")
	}
	if _, err := svc.AppendMessageToConversation(ctx, owner.ID, cv.ID, models.RoleUser, "  ", "", ""); err == nil {
		t.Fatal("blank content accepted")
	}
	if _, err := svc.AppendMessageToConversation(ctx, owner.ID, 9999, models.RoleUser, "hi", "", ""); err == nil {
		t.Fatal("missing conversation accepted")
	}
}

func TestDeleteUserCascades(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user, _ := svc.RegisterUser(ctx, "gone", "pw12345")
	cv, _ := svc.CreateConversation(ctx, user.ID, "t")
	if _, err := svc.AppendMessageToConversation(ctx, user.ID, cv.ID, models.RoleUser, "hello", "", ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := svc.DeleteUser(ctx, user.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second delete err = %v, want ErrNoRows", err)
	}
	list, err := svc.ListConversations(ctx, user.ID)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatal("conversations survived user deletion")
	}
}
