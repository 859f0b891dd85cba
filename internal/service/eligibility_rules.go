package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

const (
	minApplicantAge = 21
	maxApplicantAge = 65
	minCibilScore   = 650
	rejectCibil     = 550
)

var (
	minAnnualIncome   = decimal.NewFromInt(300000)
	maxIncomeMultiple = decimal.NewFromInt(5)
)

var (
	salariedDocuments      = []string{"Salary Slips (3 months)", "Employment Certificate", "Form 16"}
	selfEmployedDocuments  = []string{"Business Registration", "ITR (2 years)", "Profit & Loss Statement", "Balance Sheet"}
	homeLoanDocuments      = []string{"Property Documents", "Sale Agreement", "Approved Building Plan"}
	carLoanDocuments       = []string{"Vehicle Quotation", "Insurance Details"}
	educationLoanDocuments = []string{"Admission Letter", "Fee Structure", "Academic Records"}
)

// RuleScorer evaluates eligibility with fixed thresholds. It never fails.
type RuleScorer struct {
	now func() time.Time
}

// NewRuleScorer constructs a RuleScorer using the wall clock.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{now: time.Now}
}

// Assess implements the scorer contract.
func (s *RuleScorer) Assess(_ context.Context, facts models.ApplicantFacts, loan models.LoanRequest) (models.Assessment, error) {
	status := models.VerdictApproved
	var reasons []string

	if age, ok := ageOn(facts.DateOfBirth, s.now()); ok {
		if age < minApplicantAge {
			reasons = append(reasons, "Applicant below minimum age of 21 years")
			status = status.Tighten(models.VerdictRejected)
		} else if age > maxApplicantAge {
			reasons = append(reasons, "Applicant above maximum age of 65 years")
			status = status.Tighten(models.VerdictRejected)
		}
	}

	if facts.AnnualIncome.LessThan(minAnnualIncome) {
		reasons = append(reasons, "Annual income below minimum requirement of ₹3,00,000")
		status = status.Tighten(models.VerdictRejected)
	}

	if facts.AnnualIncome.IsPositive() && loan.Amount.Div(facts.AnnualIncome).GreaterThan(maxIncomeMultiple) {
		reasons = append(reasons, "Loan amount exceeds 5 times annual income")
		status = status.Tighten(models.VerdictConditional)
	}

	if facts.CibilScore < minCibilScore {
		reasons = append(reasons, "CIBIL score below 650")
		if facts.CibilScore < rejectCibil {
			status = status.Tighten(models.VerdictRejected)
		} else {
			status = status.Tighten(models.VerdictConditional)
		}
	}

	reason := "All eligibility criteria met"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return models.Assessment{
		Status:          status,
		Reason:          reason,
		Documents:       requiredDocuments(facts.EmploymentType, loan.LoanType),
		Recommendations: recommendationsFor(status),
		Source:          models.AssessmentSourceRules,
	}, nil
}

func requiredDocuments(employmentType, loanType string) []string {
	docs := append([]string{}, models.BaselineDocuments...)

	if strings.Contains(strings.ToLower(employmentType), "salaried") {
		docs = append(docs, salariedDocuments...)
	} else {
		docs = append(docs, selfEmployedDocuments...)
	}

	kind := strings.ToLower(loanType)
	switch {
	case strings.Contains(kind, "home"):
		docs = append(docs, homeLoanDocuments...)
	case strings.Contains(kind, "car"):
		docs = append(docs, carLoanDocuments...)
	case strings.Contains(kind, "education"):
		docs = append(docs, educationLoanDocuments...)
	}
	return docs
}

func recommendationsFor(status models.Verdict) []string {
	switch status {
	case models.VerdictRejected:
		return []string{"Improve CIBIL score and reapply after 6 months", "Consider applying for a smaller loan amount"}
	case models.VerdictConditional:
		return []string{"Additional verification required", "Co-applicant may be required"}
	default:
		return []string{"Please submit all required documents for final approval"}
	}
}

// ageOn returns completed years between dob and now. Unknown birth dates report false.
func ageOn(dob *time.Time, now time.Time) (int, bool) {
	if dob == nil || dob.IsZero() {
		return 0, false
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age, true
}
