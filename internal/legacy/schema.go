// Package legacy reads and writes the flat CSV files the portal kept before
// it moved to Postgres.
package legacy

// File names inside a legacy data directory.
const (
	UsersFile         = "users.csv"
	StaffFile         = "staff.csv"
	BasicFile         = "loan_applications.csv"
	ComprehensiveFile = "comprehensive_loans.csv"
	DocumentsFile     = "document_uploads.csv"
	UserAlertsFile    = "user_alerts.csv"
	AdminAlertsFile   = "admin_alerts.csv"
	ObjectionsFile    = "objections.csv"
	HistoryFile       = "application_history.csv"
	NotificationsFile = "notifications.csv"
)

// ComprehensiveHeaders is the column layout of comprehensive_loans.csv.
var ComprehensiveHeaders = []string{
	"application_id", "user_email", "full_name", "date_of_birth", "gender",
	"marital_status", "nationality", "contact_number", "employment_type",
	"employer_name", "annual_income", "existing_loans", "loan_type",
	"loan_amount", "loan_tenure", "loan_purpose", "preferred_emi",
	"cibil_score", "status", "eligibility_status", "eligibility_reason",
	"required_documents", "uploaded_documents", "admin_notes",
	"verification_status", "created_at", "updated_at",
}

// BasicHeaders is the column layout of loan_applications.csv.
var BasicHeaders = []string{
	"application_id", "first_name", "last_name", "email", "phone",
	"loan_type", "loan_amount", "annual_income", "employment_status",
	"purpose", "status", "created_at",
}

// listSeparator joins document lists inside a single cell.
const listSeparator = ", "
