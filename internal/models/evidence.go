package models

import "time"

// EvidenceFile represents a user-uploaded case document or photo.
type EvidenceFile struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	ConversationID int64     `json:"conversation_id"`
	FileName       string    `json:"file_name"`
	Description    string    `json:"description"`
	StoredPath     string    `json:"stored_path"`
	MimeType       string    `json:"mime_type"`
	Size           int64     `json:"size"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
