package dto

import "github.com/noah-isme/loan-portal-api/internal/models"

// DashboardSummary aggregates the admin dashboard.
type DashboardSummary struct {
	TotalApplications int                      `json:"total_applications"`
	ApprovedCount     int                      `json:"approved_count"`
	RejectedCount     int                      `json:"rejected_count"`
	PendingCount      int                      `json:"pending_count"`
	ByStatus          map[string]int           `json:"by_status"`
	LoanTypes         map[string]int           `json:"loan_types"`
	AmountBuckets     []AmountBucket           `json:"amount_buckets"`
	AverageAmount     string                   `json:"avg_amount"`
	Recent            []models.ApplicationView `json:"recent_applications"`
	GeneratedAt       string                   `json:"generated_at"`
}

// AmountBucket counts applications within a loan amount band.
type AmountBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
