package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Verdict is the eligibility outcome.
type Verdict string

const (
	VerdictApproved      Verdict = "APPROVED"
	VerdictConditional   Verdict = "CONDITIONALLY_APPROVED"
	VerdictRejected      Verdict = "REJECTED"
	VerdictPendingReview Verdict = "PENDING_REVIEW"
)

func (v Verdict) severity() int {
	switch v {
	case VerdictApproved:
		return 0
	case VerdictConditional:
		return 1
	case VerdictRejected:
		return 2
	default:
		return -1
	}
}

// Final reports whether v is one of the three decisive verdicts.
func (v Verdict) Final() bool {
	return v.severity() >= 0
}

// Tighten returns the stricter of v and next. A verdict never relaxes.
func (v Verdict) Tighten(next Verdict) Verdict {
	if next.severity() > v.severity() {
		return next
	}
	return v
}

// AssessmentSource records which scoring path produced an assessment.
type AssessmentSource string

const (
	AssessmentSourceAI    AssessmentSource = "ai"
	AssessmentSourceRules AssessmentSource = "rules"
)

// Assessment is the scorer output stored with an application.
type Assessment struct {
	Status          Verdict          `json:"status"`
	Reason          string           `json:"reason"`
	Documents       []string         `json:"documents"`
	Recommendations []string         `json:"recommendations"`
	Source          AssessmentSource `json:"source"`
}

// ApplicantFacts are the scoring inputs about the applicant.
type ApplicantFacts struct {
	FullName       string
	DateOfBirth    *time.Time
	Gender         string
	MaritalStatus  string
	Nationality    string
	EmploymentType string
	EmployerName   string
	AnnualIncome   decimal.Decimal
	ExistingLoans  string
	CibilScore     int
}

// LoanRequest are the scoring inputs about the requested loan.
type LoanRequest struct {
	LoanType     string
	Amount       decimal.Decimal
	TenureYears  int
	Purpose      string
	PreferredEMI decimal.NullDecimal
}

// BaselineDocuments are required for every application.
var BaselineDocuments = []string{"Aadhaar Card", "PAN Card", "Passport Size Photos", "Bank Statements (6 months)"}
