package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

const (
	dashboardSummaryKey = "dashboard:summary"
	recentApplications  = 10
)

var lakh = decimal.NewFromInt(100000)

type applicationViewer interface {
	AllViews(ctx context.Context) ([]models.ApplicationView, error)
	Get(ctx context.Context, id string) (*models.ApplicationRecord, error)
}

type historyLister interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.HistoryEntry, error)
}

type objectionLister interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.Objection, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Applications applicationViewer
	Documents    documentLister
	History      historyLister
	Objections   objectionLister
	Cache        *CacheService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// DashboardService composes the staff dashboard and application detail views.
type DashboardService struct {
	applications applicationViewer
	documents    documentLister
	history      historyLister
	objections   objectionLister
	cache        *CacheService
	logger       *zap.Logger
	now          func() time.Time
	cfg          DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		applications: params.Applications,
		documents:    params.Documents,
		history:      params.History,
		objections:   params.Objections,
		cache:        params.Cache,
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
	}
}

// Summary returns dashboard aggregates and whether they came from cache.
// fresh skips the cached snapshot and replaces it with a recount.
func (s *DashboardService) Summary(ctx context.Context, fresh bool) (*dto.DashboardSummary, bool, error) {
	if s.cache != nil && !fresh {
		var cached dto.DashboardSummary
		hit, err := s.cache.Get(ctx, dashboardSummaryKey, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	views, err := s.applications.AllViews(ctx)
	if err != nil {
		return nil, false, err
	}
	summary := summarize(views)
	summary.GeneratedAt = s.now().UTC().Format(time.RFC3339)

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardSummaryKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

// ApplicationDetail bundles an application with its documents, history and objections.
func (s *DashboardService) ApplicationDetail(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	record, err := s.applications.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.ApplicationDetail{
		Application: record.Comprehensive,
		Basic:       record.Basic,
		Documents:   []models.DocumentUpload{},
		History:     []models.HistoryEntry{},
		Objections:  []models.Objection{},
	}
	if s.documents != nil {
		docs, err := s.documents.ListByApplication(ctx, id)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list documents")
		}
		detail.Documents = append(detail.Documents, docs...)
	}
	if s.history != nil {
		entries, err := s.history.ListByApplication(ctx, id)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load history")
		}
		detail.History = append(detail.History, entries...)
	}
	if s.objections != nil {
		objections, err := s.objections.ListByApplication(ctx, id)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list objections")
		}
		detail.Objections = append(detail.Objections, objections...)
	}
	return detail, nil
}

func summarize(views []models.ApplicationView) *dto.DashboardSummary {
	summary := &dto.DashboardSummary{
		TotalApplications: len(views),
		ByStatus:          map[string]int{},
		LoanTypes:         map[string]int{},
		AverageAmount:     "N/A",
		Recent:            []models.ApplicationView{},
	}
	buckets := []dto.AmountBucket{
		{Label: "< 1L"}, {Label: "1L–5L"}, {Label: "5L–10L"}, {Label: "10L–50L"}, {Label: "≥ 50L"}, {Label: models.NotSpecified},
	}

	total := decimal.Zero
	priced := 0
	for _, view := range views {
		summary.ByStatus[string(view.Status)]++
		switch view.Status {
		case models.StatusApproved, models.StatusEligibilityAssessed:
			summary.ApprovedCount++
		case models.StatusRejected:
			summary.RejectedCount++
		default:
			summary.PendingCount++
		}

		loanType := strings.TrimSpace(view.LoanType)
		if loanType == "" || loanType == models.NotSpecified {
			loanType = "Other"
		}
		summary.LoanTypes[loanType]++

		amount := view.Amount()
		buckets[bucketIndex(amount)].Count++
		if amount.Valid {
			total = total.Add(amount.Decimal)
			priced++
		}
	}
	summary.AmountBuckets = buckets
	if priced > 0 {
		summary.AverageAmount = formatRupees(total.Div(decimal.NewFromInt(int64(priced))))
	}

	limit := recentApplications
	if len(views) < limit {
		limit = len(views)
	}
	summary.Recent = append(summary.Recent, views[:limit]...)
	return summary
}

func bucketIndex(amount decimal.NullDecimal) int {
	if !amount.Valid {
		return 5
	}
	lakhs := amount.Decimal.Div(lakh)
	switch {
	case lakhs.LessThan(decimal.NewFromInt(1)):
		return 0
	case lakhs.LessThan(decimal.NewFromInt(5)):
		return 1
	case lakhs.LessThan(decimal.NewFromInt(10)):
		return 2
	case lakhs.LessThan(decimal.NewFromInt(50)):
		return 3
	default:
		return 4
	}
}

// formatRupees renders a whole-rupee amount with thousands separators, e.g. ₹1,234,567.
func formatRupees(amount decimal.Decimal) string {
	digits := amount.Round(0).Abs().StringFixed(0)
	var b strings.Builder
	if amount.Round(0).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString("₹")
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

