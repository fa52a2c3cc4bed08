package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nyayachat/internal/storage"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, "x", time.Now().UTC())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func TestIssueAndValidateToken(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, time.Hour)
	userID := seedUser(t, db, "asha")

	token, err := svc.IssueToken(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	got, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if got != userID {
		t.Fatalf("validated user = %d, want %d", got, userID)
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	svc := NewService(newTestDB(t), nil, time.Hour)
	if _, err := svc.ValidateToken(context.Background(), "deadbeef"); err == nil {
		t.Fatal("expected error for unknown token")
	}
	if _, err := svc.ValidateToken(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, time.Hour)
	userID := seedUser(t, db, "asha")

	past := time.Now().UTC().Add(-time.Minute)
	if _, err := db.Exec(`INSERT INTO user_tokens (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"expired-token", userID, past.Add(-time.Hour), past); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if _, err := svc.ValidateToken(context.Background(), "expired-token"); err == nil {
		t.Fatal("expected error for expired token")
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_tokens WHERE token = ?`, "expired-token").Scan(&count); err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if count != 0 {
		t.Fatal("expired token not pruned")
	}
}

func TestRevokeToken(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, time.Hour)
	userID := seedUser(t, db, "asha")

	token, err := svc.IssueToken(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if err := svc.RevokeToken(context.Background(), token); err != nil {
		t.Fatalf("revoke token: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("revoked token still validates")
	}
}

func TestRevokeUserTokens(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, time.Hour)
	userID := seedUser(t, db, "asha")

	var tokens []string
	for i := 0; i < 3; i++ {
		token, err := svc.IssueToken(context.Background(), userID)
		if err != nil {
			t.Fatalf("issue token %d: %v", i, err)
		}
		tokens = append(tokens, token)
	}
	if err := svc.RevokeUserTokens(context.Background(), userID); err != nil {
		t.Fatalf("revoke user tokens: %v", err)
	}
	for _, token := range tokens {
		if _, err := svc.ValidateToken(context.Background(), token); err == nil {
			t.Fatalf("token %s still validates after user revocation", token)
		}
	}
}

func TestCSRFTokensAreUnique(t *testing.T) {
	svc := NewService(newTestDB(t), nil, time.Hour)
	a, err := svc.NewCSRFToken()
	if err != nil {
		t.Fatalf("csrf token: %v", err)
	}
	b, err := svc.NewCSRFToken()
	if err != nil {
		t.Fatalf("csrf token: %v", err)
	}
	if a == b || a == "" {
		t.Fatal("csrf tokens must be unique and non-empty")
	}
}
