package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/middleware"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
	"github.com/noah-isme/loan-portal-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, fresh bool) (*dto.DashboardSummary, bool, error)
	ApplicationDetail(ctx context.Context, id string) (*models.ApplicationDetail, error)
}

// DashboardHandler serves the staff overview and per-application detail.
type DashboardHandler struct {
	service        dashboardService
	summaryEnabled bool
}

// NewDashboardHandler constructs the handler. With summaryEnabled false the
// aggregate endpoint answers 404 while application detail stays available.
func NewDashboardHandler(service dashboardService, summaryEnabled bool) *DashboardHandler {
	return &DashboardHandler{service: service, summaryEnabled: summaryEnabled}
}

// Summary godoc
// @Summary Admin dashboard summary
// @Description Counts by status and loan type, amount buckets and recent applications
// @Tags Dashboard
// @Produce json
// @Param refresh query bool false "Recount instead of serving the cached snapshot"
// @Success 200 {object} response.Envelope
// @Router /admin-dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil || !h.summaryEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "dashboard disabled"))
		return
	}
	fresh, _ := strconv.ParseBool(c.Query("refresh"))

	start := time.Now()
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), fresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	meta["refreshed"] = fresh
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Detail godoc
// @Summary Application detail
// @Description Application with its documents, history and objections
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/applications/{id} [get]
func (h *DashboardHandler) Detail(c *gin.Context) {
	id := c.Param("id")
	if h.service == nil || id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "application not found"))
		return
	}
	detail, err := h.service.ApplicationDetail(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
