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

const (
	userAlertColumns  = `id, user_email, application_id, alert_type, title, message, priority, is_read, created_at`
	adminAlertColumns = `id, application_id, alert_type, title, message, priority, is_read, created_at`
)

// AlertRepository stores applicant and staff alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// CreateUserAlert inserts an applicant alert.
func (r *AlertRepository) CreateUserAlert(ctx context.Context, alert *models.UserAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Priority == "" {
		alert.Priority = models.PriorityMedium
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO user_alerts (` + userAlertColumns + `)
VALUES (:id, :user_email, :application_id, :alert_type, :title, :message, :priority, :is_read, :created_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create user alert: %w", err)
	}
	return nil
}

// CreateAdminAlert inserts a staff alert.
func (r *AlertRepository) CreateAdminAlert(ctx context.Context, alert *models.AdminAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Priority == "" {
		alert.Priority = models.PriorityMedium
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO admin_alerts (` + adminAlertColumns + `)
VALUES (:id, :application_id, :alert_type, :title, :message, :priority, :is_read, :created_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create admin alert: %w", err)
	}
	return nil
}

// ListUserAlerts returns an applicant's alerts newest first.
func (r *AlertRepository) ListUserAlerts(ctx context.Context, email string, unreadOnly bool) ([]models.UserAlert, error) {
	query := `SELECT ` + userAlertColumns + ` FROM user_alerts WHERE LOWER(user_email) = LOWER($1)`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC`
	var alerts []models.UserAlert
	if err := r.db.SelectContext(ctx, &alerts, query, email); err != nil {
		return nil, fmt.Errorf("list user alerts: %w", err)
	}
	return alerts, nil
}

// ListAdminAlerts returns staff alerts newest first.
func (r *AlertRepository) ListAdminAlerts(ctx context.Context, unreadOnly bool) ([]models.AdminAlert, error) {
	query := `SELECT ` + adminAlertColumns + ` FROM admin_alerts`
	if unreadOnly {
		query += ` WHERE is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC`
	var alerts []models.AdminAlert
	if err := r.db.SelectContext(ctx, &alerts, query); err != nil {
		return nil, fmt.Errorf("list admin alerts: %w", err)
	}
	return alerts, nil
}

// MarkUserAlertRead flags an applicant alert as read; only the owner's alerts match.
func (r *AlertRepository) MarkUserAlertRead(ctx context.Context, id, email string) error {
	const query = `UPDATE user_alerts SET is_read = TRUE WHERE id = $1 AND LOWER(user_email) = LOWER($2)`
	return execExpectRow(ctx, r.db, "mark user alert read", query, id, email)
}

// MarkAdminAlertRead flags a staff alert as read.
func (r *AlertRepository) MarkAdminAlertRead(ctx context.Context, id string) error {
	const query = `UPDATE admin_alerts SET is_read = TRUE WHERE id = $1`
	return execExpectRow(ctx, r.db, "mark admin alert read", query, id)
}

func execExpectRow(ctx context.Context, db *sqlx.DB, op, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
