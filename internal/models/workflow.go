package models

import "time"

// ObjectionStatus tracks an objection's lifecycle.
type ObjectionStatus string

const (
	ObjectionPending    ObjectionStatus = "pending"
	ObjectionResolved   ObjectionStatus = "resolved"
	ObjectionSuperseded ObjectionStatus = "superseded"
)

// Objection is a staff request for more information on an application.
type Objection struct {
	ObjectionID        string          `db:"objection_id" json:"objection_id"`
	ApplicationID      string          `db:"application_id" json:"application_id"`
	UserEmail          string          `db:"user_email" json:"user_email"`
	Reason             string          `db:"objection_reason" json:"objection_reason"`
	RequestedDocuments string          `db:"requested_documents" json:"requested_documents"`
	Status             ObjectionStatus `db:"status" json:"status"`
	CreatedBy          string          `db:"created_by" json:"created_by"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt         *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

// HistoryAction names an audit history entry.
type HistoryAction string

const (
	ActionSubmitted           HistoryAction = "SUBMITTED"
	ActionUnderReview         HistoryAction = "UNDER_REVIEW"
	ActionApproved            HistoryAction = "APPROVED"
	ActionRejected            HistoryAction = "REJECTED"
	ActionObjectionRaised     HistoryAction = "OBJECTION_RAISED"
	ActionObjectionSuperseded HistoryAction = "OBJECTION_SUPERSEDED"
	ActionResubmitted         HistoryAction = "RESUBMITTED"
	ActionDocumentUploaded    HistoryAction = "DOCUMENT_UPLOADED"
	ActionDocumentVerified    HistoryAction = "DOCUMENT_VERIFIED"
	ActionStatusUpdated       HistoryAction = "STATUS_UPDATED"
)

// HistoryEntry is an append-only audit record for an application.
type HistoryEntry struct {
	DraftID       string            `db:"draft_id" json:"draft_id"`
	ApplicationID string            `db:"application_id" json:"application_id"`
	UserEmail     string            `db:"user_email" json:"user_email"`
	Status        ApplicationStatus `db:"status" json:"status"`
	Action        HistoryAction     `db:"action_type" json:"action_type"`
	ActionBy      string            `db:"action_by" json:"action_by"`
	Reason        string            `db:"action_reason" json:"action_reason"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// Draft is an objected application awaiting applicant action.
type Draft struct {
	Application ApplicationView `json:"application"`
	Objection   Objection       `json:"objection"`
}

// ApplicationDetail bundles everything staff see for one application.
type ApplicationDetail struct {
	Application *LoanApplication  `json:"application,omitempty"`
	Basic       *BasicApplication `json:"basic,omitempty"`
	Documents   []DocumentUpload  `json:"documents"`
	History     []HistoryEntry    `json:"history"`
	Objections  []Objection       `json:"objections"`
}
