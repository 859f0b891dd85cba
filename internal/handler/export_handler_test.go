package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/middleware"
	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/service"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

type exportServiceMock struct {
	request     dto.ExportRequest
	actor       string
	createErr   error
	statusResp  *dto.ExportStatusResponse
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportServiceMock) CreateJob(_ context.Context, req dto.ExportRequest, actor string) (*dto.ExportJobResponse, error) {
	m.request = req
	m.actor = actor
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}, nil
}

func (m *exportServiceMock) GetStatus(context.Context, string) (*dto.ExportStatusResponse, error) {
	if m.statusResp == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return m.statusResp, nil
}

func (m *exportServiceMock) ResolveDownload(context.Context, string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func TestExportHandlerCreate(t *testing.T) {
	mock := &exportServiceMock{}
	h := NewExportHandler(mock)

	payload, _ := json.Marshal(dto.ExportRequest{Format: models.ExportFormatXLSX, Status: "approved"})
	c, w := newGinContext(http.MethodPost, "/admin/exports", payload)
	c.Set(middleware.ContextUserKey, staffClaims)
	h.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ExportFormatXLSX, mock.request.Format)
	assert.Equal(t, "officer", mock.actor)
}

func TestExportHandlerCreateValidationError(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{createErr: appErrors.Clone(appErrors.ErrValidation, "format must be one of csv, pdf, xlsx, legacy_csv")})

	c, w := newGinContext(http.MethodPost, "/admin/exports", []byte(`{"format":"docx"}`))
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{statusResp: &dto.ExportStatusResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100}})

	c, w := newGinContext(http.MethodGet, "/admin/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	h.Status(c)
	require.Equal(t, http.StatusOK, w.Code)

	h = NewExportHandler(&exportServiceMock{})
	c, w = newGinContext(http.MethodGet, "/admin/exports/missing", nil)
	h.Status(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loan_applications.csv")
	require.NoError(t, os.WriteFile(path, []byte("application_id\nAB12CD34\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	h := NewExportHandler(&exportServiceMock{download: &service.ExportDownload{
		File:      file,
		Filename:  "loan_applications.csv",
		Format:    models.ExportFormatCSV,
		ExpiresAt: time.Now().Add(time.Hour),
	}})

	c, w := newGinContext(http.MethodGet, "/admin/exports/download?token=abc", nil)
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "loan_applications.csv")
	assert.Equal(t, "application_id\nAB12CD34\n", w.Body.String())
}

func TestExportHandlerDisabled(t *testing.T) {
	h := NewExportHandler(nil)
	c, w := newGinContext(http.MethodPost, "/admin/exports", []byte(`{"format":"csv"}`))
	h.Create(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
