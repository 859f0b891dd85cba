package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
	"github.com/noah-isme/loan-portal-api/pkg/response"
)

type workflowService interface {
	StartReview(ctx context.Context, id, actor string) error
	RaiseObjection(ctx context.Context, id string, req dto.ObjectionRequest, actor string) (*models.Objection, error)
	Resubmit(ctx context.Context, owner models.Principal, req dto.ResubmitRequest) error
	Approve(ctx context.Context, id, notes, actor string) error
	Reject(ctx context.Context, id, notes, actor string) error
}

// WorkflowHandler exposes review, objection and decision endpoints.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(service workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// StartReview godoc
// @Summary Start reviewing an application
// @Tags Workflow
// @Param id path string true "Application ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /admin/applications/{id}/review [post]
func (h *WorkflowHandler) StartReview(c *gin.Context) {
	if err := h.service.StartReview(c.Request.Context(), c.Param("id"), actorName(claimsFromContext(c))); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateObjection godoc
// @Summary Raise an objection
// @Description Requests changes or documents from the applicant; replaces any pending objection
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ObjectionRequest true "Objection"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /create-objection/{id} [post]
func (h *WorkflowHandler) CreateObjection(c *gin.Context) {
	var req dto.ObjectionRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid objection payload"))
		return
	}
	objection, err := h.service.RaiseObjection(c.Request.Context(), c.Param("id"), req, actorName(claimsFromContext(c)))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, objection)
}

// Approve godoc
// @Summary Approve an application
// @Tags Workflow
// @Accept json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest false "Decision notes"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /approve-application/{id} [post]
func (h *WorkflowHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject an application
// @Tags Workflow
// @Accept json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest false "Decision notes"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /reject-application/{id} [post]
func (h *WorkflowHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.Reject)
}

func (h *WorkflowHandler) decide(c *gin.Context, decide func(ctx context.Context, id, notes, actor string) error) {
	var req dto.DecisionRequest
	if c.Request.ContentLength != 0 {
		if err := bindPayload(c, &req); err != nil {
			response.Error(c, invalidPayload(err, "invalid decision payload"))
			return
		}
	}
	if err := decide(c.Request.Context(), c.Param("id"), req.Notes, actorName(claimsFromContext(c))); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Resubmit godoc
// @Summary Resubmit an objected application
// @Tags Workflow
// @Accept json
// @Param payload body dto.ResubmitRequest true "Application to resubmit"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /resubmit-application [post]
func (h *WorkflowHandler) Resubmit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ResubmitRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid resubmission payload"))
		return
	}
	if err := h.service.Resubmit(c.Request.Context(), claims.Principal(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"application_id": req.ApplicationID, "status": models.StatusResubmitted}, nil)
}
