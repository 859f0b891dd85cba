package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

const objectionColumns = `objection_id, application_id, user_email, objection_reason, requested_documents, status, created_by, created_at, resolved_at`

// ObjectionRepository reads objections outside of workflow transactions.
type ObjectionRepository struct {
	db *sqlx.DB
}

// NewObjectionRepository constructs the repository.
func NewObjectionRepository(db *sqlx.DB) *ObjectionRepository {
	return &ObjectionRepository{db: db}
}

// ListByApplication returns every objection for an application, oldest first.
func (r *ObjectionRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.Objection, error) {
	const query = `SELECT ` + objectionColumns + ` FROM objections WHERE application_id = $1 ORDER BY created_at ASC`
	var objections []models.Objection
	if err := r.db.SelectContext(ctx, &objections, query, applicationID); err != nil {
		return nil, fmt.Errorf("list objections: %w", err)
	}
	return objections, nil
}

// ListPendingByEmail returns open objections addressed to an applicant, newest first.
func (r *ObjectionRepository) ListPendingByEmail(ctx context.Context, email string) ([]models.Objection, error) {
	const query = `SELECT ` + objectionColumns + ` FROM objections WHERE LOWER(user_email) = LOWER($1) AND status = 'pending' ORDER BY created_at DESC`
	var objections []models.Objection
	if err := r.db.SelectContext(ctx, &objections, query, email); err != nil {
		return nil, fmt.Errorf("list pending objections: %w", err)
	}
	return objections, nil
}

// Import inserts a historical objection, skipping ids already present.
func (r *ObjectionRepository) Import(ctx context.Context, objection *models.Objection) error {
	const query = `INSERT INTO objections (` + objectionColumns + `)
VALUES (:objection_id, :application_id, :user_email, :objection_reason, :requested_documents, :status, :created_by, :created_at, :resolved_at)
ON CONFLICT DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, objection); err != nil {
		return fmt.Errorf("import objection: %w", err)
	}
	return nil
}

func insertObjection(ctx context.Context, exec sqlx.ExtContext, objection *models.Objection) error {
	if objection.Status == "" {
		objection.Status = models.ObjectionPending
	}
	if objection.CreatedAt.IsZero() {
		objection.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO objections (` + objectionColumns + `)
VALUES (:objection_id, :application_id, :user_email, :objection_reason, :requested_documents, :status, :created_by, :created_at, :resolved_at)
ON CONFLICT (objection_id) DO NOTHING`
	if objection.ObjectionID == "" {
		if err := insertWithFreshID(ctx, exec, query, objection, func(id string) { objection.ObjectionID = id }); err != nil {
			return fmt.Errorf("create objection: %w", err)
		}
		return nil
	}
	inserted, err := namedInsert(ctx, exec, query, objection)
	if err != nil {
		return fmt.Errorf("create objection: %w", err)
	}
	if !inserted {
		return fmt.Errorf("create objection %s: %w", objection.ObjectionID, ErrDuplicateKey)
	}
	return nil
}
