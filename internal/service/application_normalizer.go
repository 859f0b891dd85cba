package service

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

func viewFromComprehensive(app models.LoanApplication) models.ApplicationView {
	first, last := splitFullName(app.FullName, app.UserEmail)
	amount := decimal.NullDecimal{Decimal: app.LoanAmount, Valid: !app.LoanAmount.IsZero()}
	view := models.ApplicationView{
		ApplicationID:      app.ApplicationID,
		Source:             models.SourceComprehensive,
		FirstName:          first,
		LastName:           last,
		Email:              app.UserEmail,
		Phone:              app.ContactNumber,
		LoanType:           orNotSpecified(app.LoanType),
		LoanAmount:         renderAmount(amount),
		AnnualIncome:       renderAmount(decimal.NullDecimal{Decimal: app.AnnualIncome, Valid: !app.AnnualIncome.IsZero()}),
		Status:             app.Status,
		EligibilityStatus:  app.EligibilityStatus,
		EligibilityReason:  app.EligibilityReason,
		AdminNotes:         app.AdminNotes,
		VerificationStatus: app.VerificationStatus,
		CreatedAt:          app.CreatedAt,
		UpdatedAt:          app.UpdatedAt,
	}
	return view.WithAmount(amount)
}

func viewFromBasic(app models.BasicApplication) models.ApplicationView {
	first, last := strings.TrimSpace(app.FirstName), strings.TrimSpace(app.LastName)
	if first == "" {
		first, _ = splitFullName("", app.Email)
	}
	amount := app.LoanAmount
	if amount.Valid && amount.Decimal.IsZero() {
		amount.Valid = false
	}
	view := models.ApplicationView{
		ApplicationID: app.ApplicationID,
		Source:        models.SourceBasic,
		FirstName:     first,
		LastName:      last,
		Email:         app.Email,
		Phone:         app.Phone,
		LoanType:      orNotSpecified(app.LoanType),
		LoanAmount:    renderAmount(amount),
		AnnualIncome:  renderAmount(app.AnnualIncome),
		Status:        app.Status,
		AdminNotes:    app.AdminNotes,
		CreatedAt:     app.CreatedAt,
		UpdatedAt:     app.UpdatedAt,
	}
	return view.WithAmount(amount)
}

// splitFullName splits on the first space. An empty name falls back to the
// local part of the email address.
func splitFullName(fullName, email string) (string, string) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		local := email
		if at := strings.Index(email, "@"); at >= 0 {
			local = email[:at]
		}
		return local, ""
	}
	if idx := strings.Index(name, " "); idx >= 0 {
		return name[:idx], strings.TrimSpace(name[idx+1:])
	}
	return name, ""
}

func orNotSpecified(value string) string {
	if strings.TrimSpace(value) == "" {
		return models.NotSpecified
	}
	return value
}

func renderAmount(amount decimal.NullDecimal) string {
	if !amount.Valid {
		return models.NotSpecified
	}
	return amount.Decimal.String()
}

// mergeViews combines both schemas. Comprehensive records win on duplicate
// ids and the result is ordered newest first.
func mergeViews(comprehensive []models.LoanApplication, basic []models.BasicApplication) []models.ApplicationView {
	views := make([]models.ApplicationView, 0, len(comprehensive)+len(basic))
	seen := make(map[string]struct{}, cap(views))
	for _, app := range comprehensive {
		if _, ok := seen[app.ApplicationID]; ok {
			continue
		}
		seen[app.ApplicationID] = struct{}{}
		views = append(views, viewFromComprehensive(app))
	}
	for _, app := range basic {
		if _, ok := seen[app.ApplicationID]; ok {
			continue
		}
		seen[app.ApplicationID] = struct{}{}
		views = append(views, viewFromBasic(app))
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ApplicationID < views[j].ApplicationID
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}

func filterViews(views []models.ApplicationView, filter models.ApplicationFilter) []models.ApplicationView {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := views[:0:0]
	for _, view := range views {
		if filter.Status != "" && view.Status != filter.Status {
			continue
		}
		if filter.LoanType != "" && !strings.EqualFold(view.LoanType, filter.LoanType) {
			continue
		}
		if search != "" && !matchesSearch(view, search) {
			continue
		}
		out = append(out, view)
	}
	return out
}

func matchesSearch(view models.ApplicationView, needle string) bool {
	for _, field := range []string{view.ApplicationID, view.Email, view.FirstName, view.LastName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func paginateViews(views []models.ApplicationView, page, pageSize int) ([]models.ApplicationView, *models.Pagination) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	meta := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(views)}
	if page-1 >= (len(views)+pageSize-1)/pageSize {
		return []models.ApplicationView{}, meta
	}
	start := (page - 1) * pageSize
	if start >= len(views) {
		return []models.ApplicationView{}, meta
	}
	end := start + pageSize
	if end > len(views) {
		end = len(views)
	}
	return views[start:end], meta
}
