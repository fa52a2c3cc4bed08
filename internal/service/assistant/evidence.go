package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"nyayachat/internal/models"
)

const (
	DefaultEvidenceTTL             = 30 * 24 * time.Hour
	DefaultEvidenceCleanupInterval = time.Hour
)

// RecordEvidenceFile stores metadata for an uploaded evidence document.
func (s *Service) RecordEvidenceFile(ctx context.Context, userID, conversationID int64, fileName, description, storedPath, mimeType string, size int64, ttl time.Duration) (int64, error) {
	if userID <= 0 || conversationID <= 0 {
		return 0, errors.New("user_id and conversation_id are required")
	}
	if fileName == "" || storedPath == "" {
		return 0, errors.New("file name and stored path are required")
	}
	if ttl <= 0 {
		ttl = DefaultEvidenceTTL
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence_files (user_id, conversation_id, file_name, description, stored_path, mime_type, size, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'active', ?, ?)`,
		userID, conversationID, fileName, description, storedPath, mimeType, size, now, now.Add(ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("record evidence file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("evidence file id: %w", err)
	}
	return id, nil
}

// EvidenceStorageUsage reports the total bytes of active evidence held for a user.
func (s *Service) EvidenceStorageUsage(ctx context.Context, userID int64) (int64, error) {
	var usage sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size) FROM evidence_files WHERE user_id = ? AND status = 'active'`, userID,
	).Scan(&usage)
	if err != nil {
		return 0, fmt.Errorf("evidence usage: %w", err)
	}
	return usage.Int64, nil
}

// ListEvidenceFiles returns active evidence for a conversation, newest first.
func (s *Service) ListEvidenceFiles(ctx context.Context, userID, conversationID int64) ([]*models.EvidenceFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, file_name, description, stored_path, mime_type, size, status, created_at, expires_at
		 FROM evidence_files WHERE user_id = ? AND conversation_id = ? AND status = 'active'
		 ORDER BY created_at DESC`,
		userID, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence files: %w", err)
	}
	defer rows.Close()

	var files []*models.EvidenceFile
	for rows.Next() {
		f := new(models.EvidenceFile)
		if err := rows.Scan(&f.ID, &f.UserID, &f.ConversationID, &f.FileName, &f.Description, &f.StoredPath, &f.MimeType, &f.Size, &f.Status, &f.CreatedAt, &f.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan evidence file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// StartEvidenceCleaner launches the background expiry loop.
func (s *Service) StartEvidenceCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultEvidenceCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cleanupExpiredFiles(); err != nil {
				log.Printf("cleanup evidence files error: %v", err)
			}
		}
	}
}

func (s *Service) cleanupExpiredFiles() error {
	rows, err := s.db.Query(`
		SELECT id, stored_path FROM evidence_files
		WHERE status = 'active' AND expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return err
	}
	defer rows.Close()

	type fileRow struct {
		id   int64
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			return err
		}
		files = append(files, fr)
	}

	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove evidence file %s failed: %v", f.path, err)
			continue
		}
		if err := s.deleteEvidenceRecord(f.id); err != nil {
			log.Printf("delete evidence record %d failed: %v", f.id, err)
		}

		// prune empty directories
		_ = os.Remove(filepath.Dir(f.path))
	}
	return nil
}

func (s *Service) deleteEvidenceRecord(id int64) error {
	_, err := s.db.Exec(`DELETE FROM evidence_files WHERE id = ?`, id)
	return err
}
