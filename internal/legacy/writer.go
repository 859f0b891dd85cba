package legacy

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/pkg/export"
)

const legacyTimeLayout = "2006-01-02T15:04:05.000000"

// Writer renders applications in the comprehensive_loans.csv layout so the
// export can be opened by tooling that still reads the old files.
type Writer struct {
	csv *export.CSVExporter
}

// NewWriter constructs a Writer.
func NewWriter() *Writer {
	return &Writer{csv: export.NewCSVExporter()}
}

// Dataset maps applications onto the legacy comprehensive columns.
func (w *Writer) Dataset(apps []models.LoanApplication) export.Dataset {
	data := export.Dataset{
		Headers: append([]string(nil), ComprehensiveHeaders...),
		Rows:    make([]map[string]string, 0, len(apps)),
	}
	for _, app := range apps {
		data.Rows = append(data.Rows, comprehensiveRow(app))
	}
	return data
}

// Render returns the CSV bytes for apps.
func (w *Writer) Render(apps []models.LoanApplication) ([]byte, error) {
	return w.csv.Render(w.Dataset(apps))
}

// Write streams the CSV for apps to out.
func (w *Writer) Write(out io.Writer, apps []models.LoanApplication) error {
	payload, err := w.Render(apps)
	if err != nil {
		return err
	}
	if _, err := out.Write(payload); err != nil {
		return fmt.Errorf("write legacy csv: %w", err)
	}
	return nil
}

func comprehensiveRow(app models.LoanApplication) map[string]string {
	row := map[string]string{
		"application_id":      app.ApplicationID,
		"user_email":          app.UserEmail,
		"full_name":           app.FullName,
		"gender":              app.Gender,
		"marital_status":      app.MaritalStatus,
		"nationality":         app.Nationality,
		"contact_number":      app.ContactNumber,
		"employment_type":     app.EmploymentType,
		"employer_name":       app.EmployerName,
		"annual_income":       app.AnnualIncome.String(),
		"existing_loans":      app.ExistingLoans,
		"loan_type":           app.LoanType,
		"loan_amount":         app.LoanAmount.String(),
		"loan_tenure":         strconv.Itoa(app.LoanTenure),
		"loan_purpose":        app.LoanPurpose,
		"cibil_score":         strconv.Itoa(app.CibilScore),
		"status":              string(app.Status),
		"eligibility_status":  string(app.EligibilityStatus),
		"eligibility_reason":  app.EligibilityReason,
		"required_documents":  strings.Join(app.RequiredDocuments, listSeparator),
		"uploaded_documents":  strings.Join(app.UploadedDocuments, listSeparator),
		"admin_notes":         app.AdminNotes,
		"verification_status": app.VerificationStatus,
		"created_at":          formatTime(app.CreatedAt),
		"updated_at":          formatTime(app.UpdatedAt),
	}
	if app.DateOfBirth != nil {
		row["date_of_birth"] = app.DateOfBirth.Format("2006-01-02")
	}
	if app.PreferredEMI.Valid {
		row["preferred_emi"] = app.PreferredEMI.Decimal.String()
	}
	return row
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(legacyTimeLayout)
}
