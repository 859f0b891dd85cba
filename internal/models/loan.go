package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ApplicationStatus is the workflow state of a loan application.
type ApplicationStatus string

const (
	StatusSubmitted           ApplicationStatus = "submitted"
	StatusEligibilityAssessed ApplicationStatus = "eligibility_assessed"
	StatusUnderReview         ApplicationStatus = "under_review"
	StatusObjectionRaised     ApplicationStatus = "objection_raised"
	StatusResubmitted         ApplicationStatus = "resubmitted"
	StatusApproved            ApplicationStatus = "approved"
	StatusRejected            ApplicationStatus = "rejected"
)

var statusGraph = map[ApplicationStatus][]ApplicationStatus{
	StatusSubmitted:           {StatusUnderReview, StatusObjectionRaised, StatusApproved, StatusRejected},
	StatusEligibilityAssessed: {StatusUnderReview, StatusObjectionRaised, StatusApproved, StatusRejected},
	StatusUnderReview:         {StatusObjectionRaised, StatusApproved, StatusRejected},
	StatusObjectionRaised:     {StatusObjectionRaised, StatusResubmitted, StatusApproved, StatusRejected},
	StatusResubmitted:         {StatusUnderReview, StatusObjectionRaised, StatusApproved, StatusRejected},
	StatusApproved:            nil,
	StatusRejected:            nil,
}

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	_, ok := statusGraph[s]
	return ok
}

// Terminal reports whether no further transitions are allowed.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, candidate := range statusGraph[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseStatus maps current and legacy status spellings onto the workflow states.
// Legacy rows used "pending" for fresh basic-form submissions and upper-case
// names for objection states.
func ParseStatus(raw string) (ApplicationStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case "", "pending", "new":
		return StatusSubmitted, true
	case "documents_pending", "in_review", "review":
		return StatusUnderReview, true
	}
	status := ApplicationStatus(normalized)
	return status, status.Valid()
}

// ApplicationSource tags which historical schema a record came from.
type ApplicationSource string

const (
	SourceBasic         ApplicationSource = "basic"
	SourceComprehensive ApplicationSource = "comprehensive"
)

// NotSpecified is rendered for loan type or amount values that were never captured.
const NotSpecified = "Not specified"

// LoanApplication is the comprehensive application aggregate.
type LoanApplication struct {
	ApplicationID string `db:"application_id" json:"application_id"`
	UserEmail     string `db:"user_email" json:"user_email"`

	FullName       string          `db:"full_name" json:"full_name"`
	DateOfBirth    *time.Time      `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender         string          `db:"gender" json:"gender"`
	MaritalStatus  string          `db:"marital_status" json:"marital_status"`
	Nationality    string          `db:"nationality" json:"nationality"`
	ContactNumber  string          `db:"contact_number" json:"contact_number"`
	EmploymentType string          `db:"employment_type" json:"employment_type"`
	EmployerName   string          `db:"employer_name" json:"employer_name"`
	AnnualIncome   decimal.Decimal `db:"annual_income" json:"annual_income"`
	ExistingLoans  string          `db:"existing_loans" json:"existing_loans"`
	CibilScore     int             `db:"cibil_score" json:"cibil_score"`

	LoanType     string              `db:"loan_type" json:"loan_type"`
	LoanAmount   decimal.Decimal     `db:"loan_amount" json:"loan_amount"`
	LoanTenure   int                 `db:"loan_tenure" json:"loan_tenure"`
	LoanPurpose  string              `db:"loan_purpose" json:"loan_purpose"`
	PreferredEMI decimal.NullDecimal `db:"preferred_emi" json:"preferred_emi"`

	EligibilityStatus Verdict          `db:"eligibility_status" json:"eligibility_status"`
	EligibilityReason string           `db:"eligibility_reason" json:"eligibility_reason"`
	RequiredDocuments pq.StringArray   `db:"required_documents" json:"required_documents"`
	Recommendations   pq.StringArray   `db:"recommendations" json:"recommendations"`
	AssessmentSource  AssessmentSource `db:"assessment_source" json:"assessment_source"`

	Status             ApplicationStatus `db:"status" json:"status"`
	AdminNotes         string            `db:"admin_notes" json:"admin_notes"`
	VerificationStatus string            `db:"verification_status" json:"verification_status"`
	UploadedDocuments  pq.StringArray    `db:"uploaded_documents" json:"uploaded_documents"`
	ReviewedBy         *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Version            int               `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Assessment returns the stored eligibility assessment.
func (a *LoanApplication) Assessment() Assessment {
	return Assessment{
		Status:          a.EligibilityStatus,
		Reason:          a.EligibilityReason,
		Documents:       []string(a.RequiredDocuments),
		Recommendations: []string(a.Recommendations),
		Source:          a.AssessmentSource,
	}
}

// BasicApplication is the legacy nine-field application form.
type BasicApplication struct {
	ApplicationID    string              `db:"application_id" json:"application_id"`
	FirstName        string              `db:"first_name" json:"first_name"`
	LastName         string              `db:"last_name" json:"last_name"`
	Email            string              `db:"email" json:"email"`
	Phone            string              `db:"phone" json:"phone"`
	LoanType         string              `db:"loan_type" json:"loan_type"`
	LoanAmount       decimal.NullDecimal `db:"loan_amount" json:"loan_amount"`
	AnnualIncome     decimal.NullDecimal `db:"annual_income" json:"annual_income"`
	EmploymentStatus string              `db:"employment_status" json:"employment_status"`
	Purpose          string              `db:"purpose" json:"purpose"`
	Status           ApplicationStatus   `db:"status" json:"status"`
	AdminNotes       string              `db:"admin_notes" json:"admin_notes"`
	Version          int                 `db:"version" json:"version"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

// ApplicationRecord holds an application from whichever schema stores it.
type ApplicationRecord struct {
	Comprehensive *LoanApplication  `json:"application,omitempty"`
	Basic         *BasicApplication `json:"basic,omitempty"`
}

// OwnerEmail returns the applicant email of the record.
func (r ApplicationRecord) OwnerEmail() string {
	if r.Comprehensive != nil {
		return r.Comprehensive.UserEmail
	}
	if r.Basic != nil {
		return r.Basic.Email
	}
	return ""
}

// Status returns the workflow status of the record.
func (r ApplicationRecord) Status() ApplicationStatus {
	if r.Comprehensive != nil {
		return r.Comprehensive.Status
	}
	if r.Basic != nil {
		return r.Basic.Status
	}
	return ""
}

// ApplicationView is the normalized shape both schemas are merged into.
type ApplicationView struct {
	ApplicationID      string            `json:"application_id"`
	Source             ApplicationSource `json:"source"`
	FirstName          string            `json:"first_name"`
	LastName           string            `json:"last_name"`
	Email              string            `json:"email"`
	Phone              string            `json:"phone"`
	LoanType           string            `json:"loan_type"`
	LoanAmount         string            `json:"loan_amount"`
	AnnualIncome       string            `json:"annual_income"`
	Status             ApplicationStatus `json:"status"`
	EligibilityStatus  Verdict           `json:"eligibility_status,omitempty"`
	EligibilityReason  string            `json:"eligibility_reason,omitempty"`
	AdminNotes         string            `json:"admin_notes,omitempty"`
	VerificationStatus string            `json:"verification_status,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`

	amount decimal.NullDecimal
}

// Amount exposes the parsed loan amount for aggregation.
func (v ApplicationView) Amount() decimal.NullDecimal {
	return v.amount
}

// WithAmount records the parsed loan amount alongside the rendered value.
func (v ApplicationView) WithAmount(amount decimal.NullDecimal) ApplicationView {
	v.amount = amount
	return v
}

// ApplicationFilter narrows admin listings.
type ApplicationFilter struct {
	Status   ApplicationStatus
	LoanType string
	Search   string
	Page     int
	PageSize int
}

// UpdateStatusParams describes a staff-driven status change.
type UpdateStatusParams struct {
	Status       ApplicationStatus
	Notes        *string
	Verification *string
	Actor        string
}

// ApplicationState is the schema-independent header of a locked application row.
type ApplicationState struct {
	ApplicationID string            `db:"application_id"`
	Source        ApplicationSource `db:"source"`
	OwnerEmail    string            `db:"owner_email"`
	Status        ApplicationStatus `db:"status"`
	Version       int               `db:"version"`
}

// StatusChange is one persisted status write. Nil fields keep their stored values.
type StatusChange struct {
	Status       ApplicationStatus
	Notes        *string
	Verification *string
	ReviewedBy   *string
	At           time.Time
}
