package legacy

import (
	"bytes"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/pkg/export"
)

func TestWriterOutputReadsBackThroughReader(t *testing.T) {
	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	app := models.LoanApplication{
		ApplicationID:     "AB12CD34",
		UserEmail:         "asha@example.com",
		FullName:          "Asha Rao",
		DateOfBirth:       &dob,
		AnnualIncome:      decimal.NewFromInt(1200000),
		LoanType:          "Home Loan",
		LoanAmount:        decimal.NewFromInt(2500000),
		LoanTenure:        20,
		CibilScore:        780,
		Status:            models.StatusUnderReview,
		EligibilityStatus: models.VerdictConditional,
		RequiredDocuments: pq.StringArray{"PAN Card", "Salary Slips"},
		UploadedDocuments: pq.StringArray{},
		CreatedAt:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter().Write(&buf, []models.LoanApplication{app}))

	parsed, err := export.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ComprehensiveHeaders, parsed.Headers)
	require.Len(t, parsed.Rows, 1)

	back, ok := parseComprehensive(parsed.Rows[0])
	require.True(t, ok)
	assert.Equal(t, app.ApplicationID, back.ApplicationID)
	assert.Equal(t, app.Status, back.Status)
	assert.Equal(t, app.EligibilityStatus, back.EligibilityStatus)
	assert.True(t, app.LoanAmount.Equal(back.LoanAmount))
	assert.Equal(t, []string(app.RequiredDocuments), []string(back.RequiredDocuments))
	assert.Equal(t, app.CreatedAt, back.CreatedAt)
	require.NotNil(t, back.DateOfBirth)
	assert.Equal(t, dob, *back.DateOfBirth)
	assert.Empty(t, parsed.Rows[0]["preferred_emi"])
}
