package models

import "time"

// Verification is the review state of one uploaded document.
type Verification string

const (
	VerificationPending  Verification = "pending"
	VerificationApproved Verification = "approved"
	VerificationRejected Verification = "rejected"
)

// DocumentUpload records a stored file attached to an application.
type DocumentUpload struct {
	ID            string       `db:"id" json:"id"`
	ApplicationID string       `db:"application_id" json:"application_id"`
	UserEmail     string       `db:"user_email" json:"user_email"`
	DocumentType  string       `db:"document_type" json:"document_type"`
	FileName      string       `db:"file_name" json:"file_name"`
	FilePath      string       `db:"file_path" json:"file_path"`
	MimeType      string       `db:"mime_type" json:"mime_type"`
	SizeBytes     int64        `db:"size_bytes" json:"size_bytes"`
	Verification  Verification `db:"verification" json:"verification"`
	AdminComments string       `db:"admin_comments" json:"admin_comments"`
	UploadedAt    time.Time    `db:"uploaded_at" json:"uploaded_at"`
	VerifiedAt    *time.Time   `db:"verified_at" json:"verified_at,omitempty"`
	VerifiedBy    *string      `db:"verified_by" json:"verified_by,omitempty"`
}
