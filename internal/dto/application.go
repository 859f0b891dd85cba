package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

// ComprehensiveApplicationRequest captures POST /apply-comprehensive-loan.
// Form tags keep the hyphenated field names of the portal's HTML form.
type ComprehensiveApplicationRequest struct {
	FullName       string              `json:"full_name" form:"full-name" validate:"required,max=120"`
	DateOfBirth    string              `json:"date_of_birth" form:"date-of-birth" validate:"required,datetime=2006-01-02"`
	Gender         string              `json:"gender" form:"gender" validate:"omitempty,max=20"`
	MaritalStatus  string              `json:"marital_status" form:"marital-status" validate:"omitempty,max=20"`
	Nationality    string              `json:"nationality" form:"nationality" validate:"omitempty,max=60"`
	ContactNumber  string              `json:"contact_number" form:"contact-number" validate:"required,numeric,len=10"`
	EmploymentType string              `json:"employment_type" form:"employment-type" validate:"required,max=40"`
	EmployerName   string              `json:"employer_name" form:"employer-name" validate:"omitempty,max=120"`
	AnnualIncome   decimal.Decimal     `json:"annual_income" form:"annual-income"`
	ExistingLoans  string              `json:"existing_loans" form:"existing-loans" validate:"omitempty,max=255"`
	CibilScore     int                 `json:"cibil_score" form:"cibil-score" validate:"min=0,max=900"`
	LoanType       string              `json:"loan_type" form:"loan-type" validate:"required,max=60"`
	LoanAmount     decimal.Decimal     `json:"loan_amount" form:"loan-amount"`
	LoanTenure     int                 `json:"loan_tenure" form:"loan-tenure" validate:"required,min=1,max=40"`
	LoanPurpose    string              `json:"loan_purpose" form:"loan-purpose" validate:"required,max=500"`
	PreferredEMI   decimal.NullDecimal `json:"preferred_emi" form:"preferred-emi"`
}

// BasicApplicationRequest captures the nine-field POST /apply-loan form.
type BasicApplicationRequest struct {
	FirstName        string              `json:"first_name" form:"firstName" validate:"required,max=60"`
	LastName         string              `json:"last_name" form:"lastName" validate:"required,max=60"`
	Email            string              `json:"email" form:"email" validate:"required,email"`
	Phone            string              `json:"phone" form:"phone" validate:"required,numeric,len=10"`
	LoanType         string              `json:"loan_type" form:"loanType" validate:"omitempty,max=60"`
	LoanAmount       decimal.NullDecimal `json:"loan_amount" form:"loanAmount"`
	AnnualIncome     decimal.NullDecimal `json:"annual_income" form:"annualIncome"`
	EmploymentStatus string              `json:"employment_status" form:"employmentStatus" validate:"omitempty,max=40"`
	Purpose          string              `json:"purpose" form:"purpose" validate:"omitempty,max=500"`
}

// SubmitApplicationResponse is returned after a successful submission.
type SubmitApplicationResponse struct {
	ApplicationID string                   `json:"application_id"`
	Status        models.ApplicationStatus `json:"status"`
	Assessment    *models.Assessment       `json:"assessment,omitempty"`
}

// UpdateStatusRequest captures POST /admin/applications/:id/status.
type UpdateStatusRequest struct {
	Status             string  `json:"status" validate:"required"`
	Notes              *string `json:"admin_notes,omitempty" validate:"omitempty,max=2000"`
	VerificationStatus *string `json:"verification_status,omitempty" validate:"omitempty,max=60"`
}

// ApplicationListQuery captures admin listing filters.
type ApplicationListQuery struct {
	Status   string `form:"status"`
	LoanType string `form:"loan_type"`
	Search   string `form:"q"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
