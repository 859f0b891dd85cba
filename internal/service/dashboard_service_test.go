package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok, nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

func TestFormatRupees(t *testing.T) {
	assert.Equal(t, "₹0", formatRupees(decimal.Zero))
	assert.Equal(t, "₹999", formatRupees(decimal.NewFromInt(999)))
	assert.Equal(t, "₹1,000", formatRupees(decimal.NewFromInt(1000)))
	assert.Equal(t, "₹1,234,567", formatRupees(decimal.NewFromInt(1234567)))
	assert.Equal(t, "₹250,001", formatRupees(decimal.RequireFromString("250000.5")))
}

func TestSummarizeCountsAndBuckets(t *testing.T) {
	amount := func(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }
	views := []models.ApplicationView{
		models.ApplicationView{Status: models.StatusApproved, LoanType: "Home Loan"}.WithAmount(amount(2500000)),
		models.ApplicationView{Status: models.StatusEligibilityAssessed, LoanType: "Home Loan"}.WithAmount(amount(50000)),
		models.ApplicationView{Status: models.StatusRejected, LoanType: "Car Loan"}.WithAmount(amount(600000)),
		models.ApplicationView{Status: models.StatusSubmitted, LoanType: models.NotSpecified},
		models.ApplicationView{Status: models.StatusObjectionRaised, LoanType: "Business Loan"}.WithAmount(amount(7500000)),
	}

	summary := summarize(views)
	assert.Equal(t, 5, summary.TotalApplications)
	assert.Equal(t, 2, summary.ApprovedCount)
	assert.Equal(t, 1, summary.RejectedCount)
	assert.Equal(t, 2, summary.PendingCount)
	assert.Equal(t, 2, summary.LoanTypes["Home Loan"])
	assert.Equal(t, 1, summary.LoanTypes["Other"])
	assert.Equal(t, 1, summary.ByStatus["objection_raised"])

	counts := map[string]int{}
	for _, bucket := range summary.AmountBuckets {
		counts[bucket.Label] = bucket.Count
	}
	assert.Equal(t, map[string]int{"< 1L": 1, "1L–5L": 0, "5L–10L": 1, "10L–50L": 1, "≥ 50L": 1, models.NotSpecified: 1}, counts)
	assert.Equal(t, "₹2,662,500", summary.AverageAmount)
	assert.Len(t, summary.Recent, 5)
}

func TestSummarizeWithoutAmounts(t *testing.T) {
	summary := summarize(nil)
	assert.Equal(t, "N/A", summary.AverageAmount)
	assert.Empty(t, summary.Recent)
}

func TestDashboardServesFromCacheUntilInvalidated(t *testing.T) {
	f := newApplicationFixture(t)
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	f.svc.hooks.cache = cache
	dashboard := NewDashboardService(DashboardServiceParams{Applications: f.svc, Cache: cache})
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, applicant, comprehensiveRequest())
	require.NoError(t, err)

	first, hit, err := dashboard.Summary(ctx, false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, first.TotalApplications)
	assert.Equal(t, "₹2,500,000", first.AverageAmount)

	second, hit, err := dashboard.Summary(ctx, false)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.TotalApplications, second.TotalApplications)

	_, err = f.svc.SubmitBasic(ctx, dto.BasicApplicationRequest{FirstName: "Ravi", LastName: "Kumar", Email: "ravi@example.com", Phone: "9123456780"})
	require.NoError(t, err)

	third, hit, err := dashboard.Summary(ctx, false)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, third.TotalApplications)

	_, hit, err = dashboard.Summary(ctx, true)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestApplicationDetail(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	_, err := f.workflow.RaiseObjection(ctx, f.appID, dto.ObjectionRequest{Reason: "Need PAN"}, "officer")
	require.NoError(t, err)

	dashboard := NewDashboardService(DashboardServiceParams{
		Applications: f.svc,
		Documents:    documentView{f.store},
		History:      f.store,
		Objections:   objectionView{f.store},
	})
	detail, err := dashboard.ApplicationDetail(ctx, f.appID)
	require.NoError(t, err)
	require.NotNil(t, detail.Application)
	assert.Nil(t, detail.Basic)
	assert.Len(t, detail.Objections, 1)
	assert.Len(t, detail.History, 2)
	assert.Empty(t, detail.Documents)

	_, err = dashboard.ApplicationDetail(ctx, "MISSING1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
