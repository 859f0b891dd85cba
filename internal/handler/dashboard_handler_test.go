package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

type fakeDashboardSrv struct {
	summary *dto.DashboardSummary
	hit     bool
	err     error
	fresh   bool
}

func (f *fakeDashboardSrv) Summary(_ context.Context, fresh bool) (*dto.DashboardSummary, bool, error) {
	f.fresh = fresh
	if fresh {
		return f.summary, false, f.err
	}
	return f.summary, f.hit, f.err
}

func (f *fakeDashboardSrv) ApplicationDetail(_ context.Context, id string) (*models.ApplicationDetail, error) {
	if id != "AB12CD34" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return &models.ApplicationDetail{Application: &models.LoanApplication{ApplicationID: id}}, nil
}

func TestDashboardSummaryExposesCacheHit(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{summary: &dto.DashboardSummary{TotalApplications: 3, AverageAmount: "₹1,250,000"}, hit: true}, true)

	c, w := newGinContext(http.MethodGet, "/admin-dashboard", nil)
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data dto.DashboardSummary   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Data.TotalApplications)
	assert.Equal(t, "₹1,250,000", body.Data.AverageAmount)
	assert.Equal(t, true, body.Meta["cache_hit"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}

func TestDashboardRefreshBypassesCache(t *testing.T) {
	srv := &fakeDashboardSrv{summary: &dto.DashboardSummary{TotalApplications: 4}, hit: true}
	h := NewDashboardHandler(srv, true)

	c, w := newGinContext(http.MethodGet, "/admin-dashboard?refresh=true", nil)
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, srv.fresh)

	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body.Meta["cache_hit"])
	assert.Equal(t, true, body.Meta["refreshed"])
}

func TestDashboardDisabledKeepsDetail(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{}, false)
	c, w := newGinContext(http.MethodGet, "/admin-dashboard", nil)
	h.Summary(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newGinContext(http.MethodGet, "/admin/applications/AB12CD34", nil)
	c.Params = gin.Params{{Key: "id", Value: "AB12CD34"}}
	h.Detail(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApplicationDetail(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{}, true)

	c, w := newGinContext(http.MethodGet, "/admin/applications/AB12CD34", nil)
	c.Params = gin.Params{{Key: "id", Value: "AB12CD34"}}
	h.Detail(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/admin/applications/ZZ", nil)
	c.Params = gin.Params{{Key: "id", Value: "ZZ"}}
	h.Detail(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
