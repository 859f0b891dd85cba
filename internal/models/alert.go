package models

import "time"

// AlertPriority ranks alerts for display.
type AlertPriority string

const (
	PriorityLow    AlertPriority = "low"
	PriorityMedium AlertPriority = "medium"
	PriorityHigh   AlertPriority = "high"
)

// UserAlert is an applicant-facing notification record.
type UserAlert struct {
	ID            string        `db:"id" json:"id"`
	UserEmail     string        `db:"user_email" json:"user_email"`
	ApplicationID string        `db:"application_id" json:"application_id"`
	AlertType     string        `db:"alert_type" json:"alert_type"`
	Title         string        `db:"title" json:"title"`
	Message       string        `db:"message" json:"message"`
	Priority      AlertPriority `db:"priority" json:"priority"`
	Read          bool          `db:"is_read" json:"is_read"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// AdminAlert is a staff-facing notification record.
type AdminAlert struct {
	ID            string        `db:"id" json:"id"`
	ApplicationID string        `db:"application_id" json:"application_id"`
	AlertType     string        `db:"alert_type" json:"alert_type"`
	Title         string        `db:"title" json:"title"`
	Message       string        `db:"message" json:"message"`
	Priority      AlertPriority `db:"priority" json:"priority"`
	Read          bool          `db:"is_read" json:"is_read"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// NotificationLog records every dispatch attempt.
type NotificationLog struct {
	ID       string    `db:"id" json:"id"`
	Email    string    `db:"email" json:"email"`
	Subject  string    `db:"subject" json:"subject"`
	Message  string    `db:"message" json:"message"`
	Category string    `db:"type" json:"type"`
	SentAt   time.Time `db:"sent_at" json:"sent_at"`
}
