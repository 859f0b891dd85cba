package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/service"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
	"github.com/noah-isme/loan-portal-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, owner models.Principal, form dto.UploadDocumentForm, file service.DocumentFile) (*models.DocumentUpload, error)
	List(ctx context.Context, applicationID string, actor *models.SessionClaims) ([]models.DocumentUpload, error)
	Verify(ctx context.Context, documentID string, req dto.VerifyDocumentRequest, actor string) (*models.DocumentUpload, error)
	Open(ctx context.Context, relPath string, actor *models.SessionClaims) (*service.DocumentDownload, error)
	SignedLink(ctx context.Context, documentID string, actor *models.SessionClaims) (*dto.SignedLinkResponse, error)
	Download(ctx context.Context, token string) (*service.DocumentDownload, error)
}

// DocumentHandler manages supporting document endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload godoc
// @Summary Upload a supporting document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param application_id formData string true "Application ID"
// @Param document_type formData string true "Document type"
// @Param document formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /upload-documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var form dto.UploadDocumentForm
	if err := bindPayload(c, &form); err != nil {
		response.Error(c, invalidPayload(err, "invalid upload payload"))
		return
	}
	fileHeader, err := c.FormFile("document")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "document file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Internal(readErr, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	doc, err := h.service.Upload(c.Request.Context(), claims.Principal(), form, service.DocumentFile{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  reader,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List documents of an application
// @Tags Documents
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /user-applications/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Verify godoc
// @Summary Verify a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.VerifyDocumentRequest true "Verification"
// @Success 200 {object} response.Envelope
// @Router /admin/documents/{id}/verify [post]
func (h *DocumentHandler) Verify(c *gin.Context) {
	var req dto.VerifyDocumentRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid verification payload"))
		return
	}
	doc, err := h.service.Verify(c.Request.Context(), c.Param("id"), req, actorName(claimsFromContext(c)))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// View godoc
// @Summary View an uploaded document
// @Description Staff may open any upload; applicants only their own
// @Tags Documents
// @Produce octet-stream
// @Param filepath path string true "Relative document path"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /view-document/{filepath} [get]
func (h *DocumentHandler) View(c *gin.Context) {
	result, err := h.service.Open(c.Request.Context(), c.Param("filepath"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDocument(c, result, response.Inline)
}

// SignedLink godoc
// @Summary Create a time-limited download link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/link [get]
func (h *DocumentHandler) SignedLink(c *gin.Context) {
	link, err := h.service.SignedLink(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDocument(c, result, response.Attachment)
}

func serveDocument(c *gin.Context, result *service.DocumentDownload, disposition response.Disposition) {
	defer result.File.Close() //nolint:errcheck
	response.File(c, response.FileBody{
		Name:        result.Filename,
		Size:        result.SizeBytes,
		ContentType: result.MimeType,
		Disposition: disposition,
		Reader:      result.File,
	})
}
