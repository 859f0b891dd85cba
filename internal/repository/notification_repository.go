package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

// NotificationRepository records every dispatch attempt.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts one notification log row.
func (r *NotificationRepository) Create(ctx context.Context, entry *models.NotificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, email, subject, message, type, sent_at)
VALUES (:id, :email, :subject, :message, :type, :sent_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create notification log: %w", err)
	}
	return nil
}

// ListByEmail returns the most recent notifications sent to an address.
func (r *NotificationRepository) ListByEmail(ctx context.Context, email string, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, email, subject, message, type, sent_at FROM notifications WHERE LOWER(email) = LOWER($1) ORDER BY sent_at DESC LIMIT $2`
	var logs []models.NotificationLog
	if err := r.db.SelectContext(ctx, &logs, query, email, limit); err != nil {
		return nil, fmt.Errorf("list notification logs: %w", err)
	}
	return logs, nil
}
