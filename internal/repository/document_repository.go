package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

const documentColumns = `id, application_id, user_email, document_type, file_name, file_path, mime_type, size_bytes, verification,
admin_comments, uploaded_at, verified_at, verified_by`

// DocumentRepository persists uploaded document metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document row outside of a workflow transaction.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.DocumentUpload) error {
	return insertDocument(ctx, r.db, doc)
}

// GetByID returns a document or sql.ErrNoRows.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.DocumentUpload, error) {
	const query = `SELECT ` + documentColumns + ` FROM document_uploads WHERE id = $1`
	var doc models.DocumentUpload
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// FindByPath returns the document stored at the relative path or sql.ErrNoRows.
func (r *DocumentRepository) FindByPath(ctx context.Context, relPath string) (*models.DocumentUpload, error) {
	const query = `SELECT ` + documentColumns + ` FROM document_uploads WHERE file_path = $1 ORDER BY uploaded_at DESC LIMIT 1`
	var doc models.DocumentUpload
	if err := r.db.GetContext(ctx, &doc, query, relPath); err != nil {
		return nil, fmt.Errorf("find document by path: %w", err)
	}
	return &doc, nil
}

// ListByApplication returns documents for an application, newest first.
func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.DocumentUpload, error) {
	const query = `SELECT ` + documentColumns + ` FROM document_uploads WHERE application_id = $1 ORDER BY uploaded_at DESC`
	var docs []models.DocumentUpload
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// UpdateVerification records a staff decision on one document.
func (r *DocumentRepository) UpdateVerification(ctx context.Context, id string, verification models.Verification, comment, verifiedBy string, at time.Time) error {
	const query = `UPDATE document_uploads SET verification = $1, admin_comments = $2, verified_by = $3, verified_at = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, verification, comment, verifiedBy, at, id)
	if err != nil {
		return fmt.Errorf("update document verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("document verification rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func insertDocument(ctx context.Context, exec sqlx.ExtContext, doc *models.DocumentUpload) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Verification == "" {
		doc.Verification = models.VerificationPending
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_uploads (` + documentColumns + `)
VALUES (:id, :application_id, :user_email, :document_type, :file_name, :file_path, :mime_type, :size_bytes, :verification,
:admin_comments, :uploaded_at, :verified_at, :verified_by)
ON CONFLICT (id) DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}
