package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

const historyColumns = `draft_id, application_id, user_email, status, action_type, action_by, action_reason, created_at`

// HistoryRepository stores the append-only application audit trail.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append writes a history entry outside of a workflow transaction.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.HistoryEntry) error {
	return insertHistory(ctx, r.db, entry)
}

// ListByApplication returns entries in creation order.
func (r *HistoryRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.HistoryEntry, error) {
	const query = `SELECT ` + historyColumns + ` FROM application_history WHERE application_id = $1 ORDER BY created_at ASC, draft_id ASC`
	var entries []models.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application history: %w", err)
	}
	return entries, nil
}

// insertHistory never overwrites or drops an entry. New entries get a fresh
// draft id, retried on collision. An entry that already carries one (a legacy
// import) yields ErrDuplicateKey when that id is taken, so re-imports skip it.
func insertHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO application_history (` + historyColumns + `)
VALUES (:draft_id, :application_id, :user_email, :status, :action_type, :action_by, :action_reason, :created_at)
ON CONFLICT (draft_id) DO NOTHING`
	if entry.DraftID == "" {
		err := insertWithFreshID(ctx, exec, query, entry, func(id string) { entry.DraftID = id })
		if err != nil {
			return fmt.Errorf("append application history: %w", err)
		}
		return nil
	}
	inserted, err := namedInsert(ctx, exec, query, entry)
	if err != nil {
		return fmt.Errorf("append application history: %w", err)
	}
	if !inserted {
		return fmt.Errorf("append application history %s: %w", entry.DraftID, ErrDuplicateKey)
	}
	return nil
}
