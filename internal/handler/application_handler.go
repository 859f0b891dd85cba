package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
	"github.com/noah-isme/loan-portal-api/pkg/response"
)

type applicationService interface {
	Submit(ctx context.Context, owner models.Principal, req dto.ComprehensiveApplicationRequest) (*dto.SubmitApplicationResponse, error)
	SubmitBasic(ctx context.Context, req dto.BasicApplicationRequest) (*dto.SubmitApplicationResponse, error)
	ListForOwner(ctx context.Context, email string) ([]models.ApplicationView, error)
	ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationView, *models.Pagination, error)
	UpdateStatus(ctx context.Context, id string, params models.UpdateStatusParams) bool
	ListDrafts(ctx context.Context, email string) ([]models.Draft, error)
	History(ctx context.Context, id, ownerEmail string) ([]models.HistoryEntry, error)
	UserAlerts(ctx context.Context, email string, unreadOnly bool) ([]models.UserAlert, error)
	MarkUserAlertRead(ctx context.Context, id, email string) error
	AdminAlerts(ctx context.Context, unreadOnly bool) ([]models.AdminAlert, error)
	MarkAdminAlertRead(ctx context.Context, id string) error
}

// ApplicationHandler exposes submission, listing and alert endpoints.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// ApplyBasic godoc
// @Summary Submit the basic loan form
// @Description Public nine-field form; stored as submitted without an eligibility assessment
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body dto.BasicApplicationRequest true "Basic application"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /apply-loan [post]
func (h *ApplicationHandler) ApplyBasic(c *gin.Context) {
	var req dto.BasicApplicationRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid application payload"))
		return
	}
	res, err := h.service.SubmitBasic(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// ApplyComprehensive godoc
// @Summary Submit the comprehensive loan application
// @Description Runs the eligibility assessment and stores the result with the application
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body dto.ComprehensiveApplicationRequest true "Comprehensive application"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /apply-comprehensive-loan [post]
func (h *ApplicationHandler) ApplyComprehensive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ComprehensiveApplicationRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid application payload"))
		return
	}
	res, err := h.service.Submit(c.Request.Context(), claims.Principal(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// UserApplications godoc
// @Summary List the applicant's applications
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /user-applications [get]
func (h *ApplicationHandler) UserApplications(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	views, err := h.service.ListForOwner(c.Request.Context(), claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Drafts godoc
// @Summary List applications awaiting resubmission
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /user-drafts [get]
func (h *ApplicationHandler) Drafts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	drafts, err := h.service.ListDrafts(c.Request.Context(), claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drafts, nil)
}

// History godoc
// @Summary Application history
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /user-applications/{id}/history [get]
func (h *ApplicationHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	owner := claims.Email
	if claims.IsStaff() {
		owner = ""
	}
	entries, err := h.service.History(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// UserAlerts godoc
// @Summary List applicant alerts
// @Tags Alerts
// @Produce json
// @Param unread query bool false "Only unread alerts"
// @Success 200 {object} response.Envelope
// @Router /user-alerts [get]
func (h *ApplicationHandler) UserAlerts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	alerts, err := h.service.UserAlerts(c.Request.Context(), claims.Email, unreadOnly(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// MarkUserAlertRead godoc
// @Summary Mark an applicant alert as read
// @Tags Alerts
// @Param id path string true "Alert ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /user-alerts/{id}/read [post]
func (h *ApplicationHandler) MarkUserAlertRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkUserAlertRead(c.Request.Context(), c.Param("id"), claims.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AdminList godoc
// @Summary List all applications
// @Description Merges comprehensive and basic applications, newest first
// @Tags Admin
// @Produce json
// @Param status query string false "Status filter"
// @Param loan_type query string false "Loan type filter"
// @Param q query string false "Search by id, email or name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/applications [get]
func (h *ApplicationHandler) AdminList(c *gin.Context) {
	var query dto.ApplicationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query parameters"))
		return
	}
	filter := models.ApplicationFilter{
		LoanType: strings.TrimSpace(query.LoanType),
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := models.ParseStatus(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
			return
		}
		filter.Status = status
	}
	views, pagination, err := h.service.ListAll(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, pagination)
}

// UpdateStatus godoc
// @Summary Set application status
// @Description Applies a staff status change; notes-only updates keep the current status
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.UpdateStatusRequest true "Status change"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/applications/{id}/status [post]
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid status payload"))
		return
	}
	status, ok := models.ParseStatus(req.Status)
	if !ok || strings.TrimSpace(req.Status) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status"))
		return
	}
	params := models.UpdateStatusParams{
		Status:       status,
		Notes:        req.Notes,
		Verification: req.VerificationStatus,
		Actor:        actorName(claimsFromContext(c)),
	}
	if !h.service.UpdateStatus(c.Request.Context(), c.Param("id"), params) {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidTransition, "status update rejected"))
		return
	}
	response.NoContent(c)
}

// AdminAlerts godoc
// @Summary List staff alerts
// @Tags Alerts
// @Produce json
// @Param unread query bool false "Only unread alerts"
// @Success 200 {object} response.Envelope
// @Router /admin/alerts [get]
func (h *ApplicationHandler) AdminAlerts(c *gin.Context) {
	alerts, err := h.service.AdminAlerts(c.Request.Context(), unreadOnly(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// MarkAdminAlertRead godoc
// @Summary Mark a staff alert as read
// @Tags Alerts
// @Param id path string true "Alert ID"
// @Success 204
// @Router /admin/alerts/{id}/read [post]
func (h *ApplicationHandler) MarkAdminAlertRead(c *gin.Context) {
	if err := h.service.MarkAdminAlertRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func unreadOnly(c *gin.Context) bool {
	value, err := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	return err == nil && value
}
