package dto

import "github.com/noah-isme/loan-portal-api/internal/models"

// ExportRequest captures POST /admin/exports.
type ExportRequest struct {
	Format   models.ExportFormat `json:"format" validate:"required"`
	Status   string              `json:"status,omitempty"`
	LoanType string              `json:"loan_type,omitempty"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Format    models.ExportFormat `json:"format"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
