package legacy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/repository"
)

// Stores groups the repositories the importer writes to. Every write is
// idempotent so an import can be rerun against a partially loaded database.
type Stores struct {
	Users interface {
		Create(ctx context.Context, user *models.User) error
	}
	Staff interface {
		Import(ctx context.Context, staff *models.Staff) error
	}
	Applications interface {
		CreateComprehensive(ctx context.Context, app *models.LoanApplication) error
		CreateBasic(ctx context.Context, app *models.BasicApplication) error
	}
	Documents interface {
		Create(ctx context.Context, doc *models.DocumentUpload) error
	}
	Alerts interface {
		CreateUserAlert(ctx context.Context, alert *models.UserAlert) error
		CreateAdminAlert(ctx context.Context, alert *models.AdminAlert) error
	}
	Objections interface {
		Import(ctx context.Context, objection *models.Objection) error
	}
	History interface {
		Append(ctx context.Context, entry *models.HistoryEntry) error
	}
	Notifications interface {
		Create(ctx context.Context, entry *models.NotificationLog) error
	}
}

// Summary counts rows per table. Skipped rows already existed.
type Summary struct {
	Imported map[string]int
	Skipped  map[string]int
	Failed   map[string]int
}

func newSummary() *Summary {
	return &Summary{
		Imported: make(map[string]int),
		Skipped:  make(map[string]int),
		Failed:   make(map[string]int),
	}
}

// Importer writes a Snapshot into the relational store.
type Importer struct {
	stores Stores
	logger *zap.Logger
}

// NewImporter constructs an Importer.
func NewImporter(stores Stores, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{stores: stores, logger: logger}
}

// Plan reports what Run would attempt without touching the database.
func Plan(snap *Snapshot) map[string]int {
	return map[string]int{
		"users":               len(snap.Users),
		"staff":               len(snap.Staff),
		"loan_applications":   len(snap.Comprehensive),
		"basic_applications":  len(snap.Basic),
		"document_uploads":    len(snap.Documents),
		"user_alerts":         len(snap.UserAlerts),
		"admin_alerts":        len(snap.AdminAlerts),
		"objections":          len(snap.Objections),
		"application_history": len(snap.History),
		"notifications":       len(snap.Notifications),
	}
}

// Run imports every row of snap. Row failures are counted and logged; the
// import only aborts when ctx is cancelled.
func (i *Importer) Run(ctx context.Context, snap *Snapshot) (*Summary, error) {
	summary := newSummary()
	record := func(table string, err error) error {
		switch {
		case err == nil:
			summary.Imported[table]++
		case errors.Is(err, repository.ErrDuplicateKey):
			summary.Skipped[table]++
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			summary.Failed[table]++
			i.logger.Warn("legacy row not imported", zap.String("table", table), zap.Error(err))
		}
		return nil
	}

	for idx := range snap.Users {
		if err := record("users", i.stores.Users.Create(ctx, &snap.Users[idx])); err != nil {
			return summary, err
		}
	}
	for idx := range snap.Staff {
		if err := record("staff", i.stores.Staff.Import(ctx, &snap.Staff[idx])); err != nil {
			return summary, err
		}
	}
	for idx := range snap.Comprehensive {
		if err := record("loan_applications", i.stores.Applications.CreateComprehensive(ctx, &snap.Comprehensive[idx])); err != nil {
			return summary, err
		}
	}
	for idx := range snap.Basic {
		if err := record("basic_applications", i.stores.Applications.CreateBasic(ctx, &snap.Basic[idx])); err != nil {
			return summary, err
		}
	}
	for idx := range snap.Objections {
		if err := record("objections", i.stores.Objections.Import(ctx, &snap.Objections[idx])); err != nil {
			return summary, err
		}
	}
	for idx := range snap.Documents {
		if err := record("document_uploads", i.stores.Documents.Create(ctx, &snap.Documents[idx])); err != nil {
			return summary, err
		}
	}
	history := sortedByCreation(snap.History)
	for idx := range history {
		if err := record("application_history", i.stores.History.Append(ctx, &history[idx])); err != nil {
			return summary, err
		}
	}
	for idx := range snap.UserAlerts {
		if err := record("user_alerts", i.stores.Alerts.CreateUserAlert(ctx, &snap.UserAlerts[idx])); err != nil {
			return summary, err
		}
	}
	for idx := range snap.AdminAlerts {
		if err := record("admin_alerts", i.stores.Alerts.CreateAdminAlert(ctx, &snap.AdminAlerts[idx])); err != nil {
			return summary, err
		}
	}
	for idx := range snap.Notifications {
		if err := record("notifications", i.stores.Notifications.Create(ctx, &snap.Notifications[idx])); err != nil {
			return summary, err
		}
	}

	if failed := total(summary.Failed); failed > 0 {
		return summary, fmt.Errorf("%d legacy rows failed to import", failed)
	}
	return summary, nil
}

func total(counts map[string]int) int {
	sum := 0
	for _, n := range counts {
		sum += n
	}
	return sum
}
