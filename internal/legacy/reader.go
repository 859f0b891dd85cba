package legacy

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/pkg/export"
)

// Snapshot is everything recovered from one legacy data directory.
type Snapshot struct {
	Users         []models.User
	Staff         []models.Staff
	Comprehensive []models.LoanApplication
	Basic         []models.BasicApplication
	Documents     []models.DocumentUpload
	UserAlerts    []models.UserAlert
	AdminAlerts   []models.AdminAlert
	Objections    []models.Objection
	History       []models.HistoryEntry
	Notifications []models.NotificationLog
}

// Reader loads legacy CSV files from a directory.
type Reader struct {
	dir    string
	logger *zap.Logger
}

// NewReader constructs a Reader rooted at dir.
func NewReader(dir string, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{dir: dir, logger: logger}
}

// Read parses every known file. Missing or unreadable files are logged and
// treated as empty so a partial directory still imports.
func (r *Reader) Read() *Snapshot {
	snap := &Snapshot{}
	for _, row := range r.rows(UsersFile) {
		if user, ok := parseUser(row); ok {
			snap.Users = append(snap.Users, user)
		}
	}
	for _, row := range r.rows(StaffFile) {
		if member, ok := parseStaff(row); ok {
			snap.Staff = append(snap.Staff, member)
		}
	}
	comprehensiveIDs := make(map[string]struct{})
	for _, row := range r.rows(ComprehensiveFile) {
		app, ok := parseComprehensive(row)
		if !ok {
			continue
		}
		if _, dup := comprehensiveIDs[app.ApplicationID]; dup {
			continue
		}
		comprehensiveIDs[app.ApplicationID] = struct{}{}
		snap.Comprehensive = append(snap.Comprehensive, app)
	}
	basicIDs := make(map[string]struct{})
	for _, row := range r.rows(BasicFile) {
		app, ok := parseBasic(row)
		if !ok {
			continue
		}
		if _, dup := comprehensiveIDs[app.ApplicationID]; dup {
			r.logger.Info("legacy application present in both files, keeping comprehensive", zap.String("application_id", app.ApplicationID))
			continue
		}
		if _, dup := basicIDs[app.ApplicationID]; dup {
			continue
		}
		basicIDs[app.ApplicationID] = struct{}{}
		snap.Basic = append(snap.Basic, app)
	}
	for _, row := range r.rows(DocumentsFile) {
		if doc, ok := parseDocument(row); ok {
			snap.Documents = append(snap.Documents, doc)
		}
	}
	for _, row := range r.rows(UserAlertsFile) {
		if alert, ok := parseUserAlert(row); ok {
			snap.UserAlerts = append(snap.UserAlerts, alert)
		}
	}
	for _, row := range r.rows(AdminAlertsFile) {
		if alert, ok := parseAdminAlert(row); ok {
			snap.AdminAlerts = append(snap.AdminAlerts, alert)
		}
	}
	for _, row := range r.rows(ObjectionsFile) {
		if objection, ok := parseObjection(row); ok {
			snap.Objections = append(snap.Objections, objection)
		}
	}
	snap.Objections = supersedeStalePending(snap.Objections)
	for _, row := range r.rows(HistoryFile) {
		if entry, ok := parseHistory(row); ok {
			snap.History = append(snap.History, entry)
		}
	}
	for _, row := range r.rows(NotificationsFile) {
		if entry, ok := parseNotification(row); ok {
			snap.Notifications = append(snap.Notifications, entry)
		}
	}
	return snap
}

func (r *Reader) rows(name string) []map[string]string {
	path := filepath.Join(r.dir, name)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Info("legacy file missing", zap.String("file", name))
		} else {
			r.logger.Warn("legacy file unreadable", zap.String("file", name), zap.Error(err))
		}
		return nil
	}
	defer file.Close()

	data, err := export.ReadCSV(file)
	if err != nil {
		r.logger.Warn("legacy file corrupt, keeping rows read so far", zap.String("file", name), zap.Int("rows", len(data.Rows)), zap.Error(err))
	}
	return data.Rows
}

func parseUser(row map[string]string) (models.User, bool) {
	email := strings.ToLower(strings.TrimSpace(row["email"]))
	if email == "" || row["password_hash"] == "" {
		return models.User{}, false
	}
	created := parseTime(row["created_at"])
	return models.User{
		ID:           uuidOrNew(row["id"]),
		Name:         strings.TrimSpace(row["name"]),
		Email:        email,
		Phone:        strings.TrimSpace(row["phone"]),
		PasswordHash: row["password_hash"],
		CreatedAt:    created,
		UpdatedAt:    created,
	}, true
}

func parseStaff(row map[string]string) (models.Staff, bool) {
	username := strings.TrimSpace(row["username"])
	if username == "" || row["password_hash"] == "" {
		return models.Staff{}, false
	}
	role := models.RoleStaff
	if strings.EqualFold(strings.TrimSpace(row["role"]), string(models.RoleAdmin)) {
		role = models.RoleAdmin
	}
	created := parseTime(row["created_at"])
	return models.Staff{
		ID:           uuidOrNew(row["id"]),
		Username:     username,
		Email:        strings.TrimSpace(row["email"]),
		Role:         role,
		PasswordHash: row["password_hash"],
		CreatedAt:    created,
		UpdatedAt:    created,
	}, true
}

func parseComprehensive(row map[string]string) (models.LoanApplication, bool) {
	id := strings.TrimSpace(row["application_id"])
	email := strings.TrimSpace(row["user_email"])
	if id == "" || email == "" {
		return models.LoanApplication{}, false
	}
	created := parseTime(row["created_at"])
	updated := parseTime(row["updated_at"])
	if row["updated_at"] == "" {
		updated = created
	}
	app := models.LoanApplication{
		ApplicationID:      id,
		UserEmail:          email,
		FullName:           strings.TrimSpace(row["full_name"]),
		Gender:             row["gender"],
		MaritalStatus:      row["marital_status"],
		Nationality:        row["nationality"],
		ContactNumber:      row["contact_number"],
		EmploymentType:     row["employment_type"],
		EmployerName:       row["employer_name"],
		AnnualIncome:       parseDecimal(row["annual_income"]).Decimal,
		ExistingLoans:      row["existing_loans"],
		CibilScore:         parseInt(row["cibil_score"]),
		LoanType:           strings.TrimSpace(row["loan_type"]),
		LoanAmount:         parseDecimal(row["loan_amount"]).Decimal,
		LoanTenure:         parseInt(row["loan_tenure"]),
		LoanPurpose:        row["loan_purpose"],
		PreferredEMI:       parseDecimal(row["preferred_emi"]),
		EligibilityStatus:  models.Verdict(strings.ToUpper(strings.TrimSpace(row["eligibility_status"]))),
		EligibilityReason:  row["eligibility_reason"],
		RequiredDocuments:  splitList(row["required_documents"]),
		Recommendations:    pq.StringArray{},
		AssessmentSource:   models.AssessmentSourceRules,
		Status:             normalizeStatus(row["status"]),
		AdminNotes:         row["admin_notes"],
		VerificationStatus: orDefault(row["verification_status"], "pending"),
		UploadedDocuments:  splitList(row["uploaded_documents"]),
		Version:            1,
		CreatedAt:          created,
		UpdatedAt:          updated,
	}
	if dob, err := time.Parse("2006-01-02", strings.TrimSpace(row["date_of_birth"])); err == nil {
		app.DateOfBirth = &dob
	}
	return app, true
}

func parseBasic(row map[string]string) (models.BasicApplication, bool) {
	id := strings.TrimSpace(row["application_id"])
	email := strings.TrimSpace(row["email"])
	if id == "" || email == "" {
		return models.BasicApplication{}, false
	}
	created := parseTime(row["created_at"])
	return models.BasicApplication{
		ApplicationID:    id,
		FirstName:        strings.TrimSpace(row["first_name"]),
		LastName:         strings.TrimSpace(row["last_name"]),
		Email:            strings.ToLower(email),
		Phone:            row["phone"],
		LoanType:         strings.TrimSpace(row["loan_type"]),
		LoanAmount:       parseDecimal(row["loan_amount"]),
		AnnualIncome:     parseDecimal(row["annual_income"]),
		EmploymentStatus: row["employment_status"],
		Purpose:          row["purpose"],
		Status:           normalizeStatus(row["status"]),
		AdminNotes:       row["admin_notes"],
		Version:          1,
		CreatedAt:        created,
		UpdatedAt:        created,
	}, true
}

func parseDocument(row map[string]string) (models.DocumentUpload, bool) {
	appID := strings.TrimSpace(row["application_id"])
	name := strings.TrimSpace(row["file_name"])
	if appID == "" || name == "" {
		return models.DocumentUpload{}, false
	}
	verification := models.Verification(strings.ToLower(strings.TrimSpace(row["verified"])))
	switch verification {
	case models.VerificationApproved, models.VerificationRejected:
	default:
		verification = models.VerificationPending
	}
	return models.DocumentUpload{
		ID:            uuidOrNew(row["id"]),
		ApplicationID: appID,
		UserEmail:     strings.TrimSpace(row["user_email"]),
		DocumentType:  strings.TrimSpace(row["document_type"]),
		FileName:      name,
		FilePath:      relocatedPath(appID, row["file_path"], name),
		Verification:  verification,
		AdminComments: row["admin_comments"],
		UploadedAt:    parseTime(row["uploaded_at"]),
	}, true
}

// relocatedPath maps a legacy upload location onto the {application_id}/{file}
// layout of the uploads root. The file itself has to be copied there separately.
func relocatedPath(appID, legacyPath, fileName string) string {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(legacyPath, "\\", "/")))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = filepath.Base(fileName)
	}
	return appID + "/" + base
}

func parseUserAlert(row map[string]string) (models.UserAlert, bool) {
	email := strings.TrimSpace(row["user_email"])
	if email == "" {
		return models.UserAlert{}, false
	}
	return models.UserAlert{
		ID:            uuidOrNew(row["id"]),
		UserEmail:     email,
		ApplicationID: strings.TrimSpace(row["application_id"]),
		AlertType:     row["alert_type"],
		Title:         row["title"],
		Message:       row["message"],
		Priority:      parsePriority(row["priority"]),
		Read:          isRead(row["read"]),
		CreatedAt:     parseTime(row["created_at"]),
	}, true
}

func parseAdminAlert(row map[string]string) (models.AdminAlert, bool) {
	if row["alert_type"] == "" && row["title"] == "" {
		return models.AdminAlert{}, false
	}
	return models.AdminAlert{
		ID:            uuidOrNew(row["id"]),
		ApplicationID: strings.TrimSpace(row["application_id"]),
		AlertType:     row["alert_type"],
		Title:         row["title"],
		Message:       row["message"],
		Priority:      parsePriority(row["priority"]),
		Read:          isRead(row["status"]),
		CreatedAt:     parseTime(row["created_at"]),
	}, true
}

func parseObjection(row map[string]string) (models.Objection, bool) {
	id := strings.TrimSpace(row["objection_id"])
	appID := strings.TrimSpace(row["application_id"])
	if id == "" || appID == "" {
		return models.Objection{}, false
	}
	status := models.ObjectionStatus(strings.ToLower(strings.TrimSpace(row["status"])))
	switch status {
	case models.ObjectionPending, models.ObjectionResolved, models.ObjectionSuperseded:
	default:
		status = models.ObjectionResolved
	}
	objection := models.Objection{
		ObjectionID:        id,
		ApplicationID:      appID,
		UserEmail:          strings.TrimSpace(row["user_email"]),
		Reason:             row["objection_reason"],
		RequestedDocuments: row["requested_documents"],
		Status:             status,
		CreatedBy:          orDefault(row["created_by"], "admin"),
		CreatedAt:          parseTime(row["created_at"]),
	}
	if raw := strings.TrimSpace(row["resolved_at"]); raw != "" {
		resolved := parseTime(raw)
		objection.ResolvedAt = &resolved
	}
	return objection, true
}

// supersedeStalePending keeps only the newest pending objection per application.
func supersedeStalePending(objections []models.Objection) []models.Objection {
	newest := make(map[string]int)
	for i, objection := range objections {
		if objection.Status != models.ObjectionPending {
			continue
		}
		if j, ok := newest[objection.ApplicationID]; !ok || objections[j].CreatedAt.Before(objection.CreatedAt) {
			newest[objection.ApplicationID] = i
		}
	}
	for i := range objections {
		if objections[i].Status != models.ObjectionPending {
			continue
		}
		if newest[objections[i].ApplicationID] != i {
			objections[i].Status = models.ObjectionSuperseded
		}
	}
	return objections
}

func parseHistory(row map[string]string) (models.HistoryEntry, bool) {
	appID := strings.TrimSpace(row["application_id"])
	if appID == "" {
		return models.HistoryEntry{}, false
	}
	action := strings.ToUpper(strings.TrimSpace(row["action_type"]))
	action = strings.ReplaceAll(action, " ", "_")
	status, ok := models.ParseStatus(row["status"])
	if !ok {
		status = models.StatusSubmitted
	}
	return models.HistoryEntry{
		DraftID:       orDefault(strings.TrimSpace(row["draft_id"]), strings.ToUpper(uuid.NewString()[:8])),
		ApplicationID: appID,
		UserEmail:     strings.TrimSpace(row["user_email"]),
		Status:        status,
		Action:        models.HistoryAction(action),
		ActionBy:      orDefault(row["action_by"], "system"),
		Reason:        row["action_reason"],
		CreatedAt:     parseTime(row["created_at"]),
	}, true
}

func parseNotification(row map[string]string) (models.NotificationLog, bool) {
	email := strings.TrimSpace(row["email"])
	if email == "" {
		return models.NotificationLog{}, false
	}
	return models.NotificationLog{
		ID:       uuidOrNew(row["id"]),
		Email:    email,
		Subject:  row["subject"],
		Message:  row["message"],
		Category: row["type"],
		SentAt:   parseTime(row["sent_at"]),
	}, true
}

// normalizeStatus maps legacy spellings ("pending", "OBJECTION_RAISED") onto
// workflow states. Unknown values fall back to submitted.
func normalizeStatus(raw string) models.ApplicationStatus {
	status, ok := models.ParseStatus(raw)
	if !ok {
		return models.StatusSubmitted
	}
	return status
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Unix(0, 0).UTC()
}

func parseDecimal(raw string) decimal.NullDecimal {
	cleaned := strings.NewReplacer("₹", "", ",", "", " ", "").Replace(raw)
	if cleaned == "" {
		return decimal.NullDecimal{}
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value)
}

func parseInt(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		if f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64); ferr == nil {
			return int(f)
		}
		return 0
	}
	return value
}

func splitList(raw string) pq.StringArray {
	out := pq.StringArray{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePriority(raw string) models.AlertPriority {
	switch models.AlertPriority(strings.ToLower(strings.TrimSpace(raw))) {
	case models.PriorityHigh:
		return models.PriorityHigh
	case models.PriorityLow:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

func isRead(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "read", "true", "1", "yes":
		return true
	}
	return false
}

func uuidOrNew(raw string) string {
	if id, err := uuid.Parse(strings.TrimSpace(raw)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// sortedByCreation orders history oldest first so replays keep audit order.
func sortedByCreation(entries []models.HistoryEntry) []models.HistoryEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries
}
