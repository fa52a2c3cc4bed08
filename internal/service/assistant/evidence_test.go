package assistant

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func seedConversation(t *testing.T, svc *Service) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	user, err := svc.RegisterUser(ctx, "uploader", "pw12345")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	cv, err := svc.CreateConversation(ctx, user.ID, "t")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return user.ID, cv.ID
}

func TestRecordAndListEvidence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID, cvID := seedConversation(t, svc)

	id, err := svc.RecordEvidenceFile(ctx, userID, cvID, "fir_draft.pdf", "draft FIR", "/tmp/x/fir_draft.pdf", "application/pdf", 2048, time.Hour)
	if err != nil {
		t.Fatalf("record evidence: %v", err)
	}
	if id <= 0 {
		t.Fatalf("evidence id = %d", id)
	}

	usage, err := svc.EvidenceStorageUsage(ctx, userID)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage != 2048 {
		t.Fatalf("usage = %d, want 2048", usage)
	}

	files, err := svc.ListEvidenceFiles(ctx, userID, cvID)
	if err != nil {
		t.Fatalf("list evidence: %v", err)
	}
	if len(files) != 1 || files[0].FileName != "fir_draft.pdf" || files[0].MimeType != "application/pdf" {
		t.Fatalf("files = %+v", files)
	}

	if _, err := svc.RecordEvidenceFile(ctx, userID, cvID, "", "", "/tmp/p", "text/plain", 1, time.Hour); err == nil {
		t.Fatal("empty file name accepted")
	}
	if _, err := svc.RecordEvidenceFile(ctx, 0, cvID, "a.txt", "", "/tmp/p", "text/plain", 1, time.Hour); err == nil {
		t.Fatal("missing user accepted")
	}
}

func TestEvidenceUsageEmpty(t *testing.T) {
	svc := newTestService(t)
	usage, err := svc.EvidenceStorageUsage(context.Background(), 42)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage != 0 {
		t.Fatalf("usage = %d, want 0", usage)
	}
}

func TestCleanupRemovesExpiredFiles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID, cvID := seedConversation(t, svc)

	dir := t.TempDir()
	expiredPath := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(expiredPath, []byte("old"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	freshPath := filepath.Join(dir, "fresh.txt")
	if err := os.WriteFile(freshPath, []byte("fresh"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// Negative TTL is normalized to the default, so expire the row directly.
	expiredID, err := svc.RecordEvidenceFile(ctx, userID, cvID, "old.txt", "", expiredPath, "text/plain", 3, time.Hour)
	if err != nil {
		t.Fatalf("record expired: %v", err)
	}
	if _, err := svc.db.Exec(`UPDATE evidence_files SET expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Minute), expiredID); err != nil {
		t.Fatalf("backdate expiry: %v", err)
	}
	if _, err := svc.RecordEvidenceFile(ctx, userID, cvID, "fresh.txt", "", freshPath, "text/plain", 5, time.Hour); err != nil {
		t.Fatalf("record fresh: %v", err)
	}

	if err := svc.cleanupExpiredFiles(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := os.Stat(expiredPath); !os.IsNotExist(err) {
		t.Fatal("expired file still on disk")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Fatalf("fresh file missing: %v", err)
	}
	files, err := svc.ListEvidenceFiles(ctx, userID, cvID)
	if err != nil {
		t.Fatalf("list evidence: %v", err)
	}
	if len(files) != 1 || files[0].FileName != "fresh.txt" {
		t.Fatalf("files after cleanup = %+v", files)
	}
	usage, err := svc.EvidenceStorageUsage(ctx, userID)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage != 5 {
		t.Fatalf("usage = %d, want 5", usage)
	}
}
