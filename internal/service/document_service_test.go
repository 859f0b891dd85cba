package service

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
	"github.com/noah-isme/loan-portal-api/pkg/storage"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

type documentFixture struct {
	workflowFixture
	docs *DocumentService
}

func newDocumentFixture(t *testing.T) documentFixture {
	t.Helper()
	wf := newWorkflowFixture(t)
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("doc-secret", 10*time.Minute)
	docs := NewDocumentService(wf.store, wf.svc, documentView{wf.store}, wf.store, local, signer, wf.svc.hooks, nil, nil, DocumentServiceConfig{
		MaxFileSize: 1024,
		APIPrefix:   "/api/v1",
	})
	return documentFixture{workflowFixture: wf, docs: docs}
}

func applicantClaims(email string) *models.SessionClaims {
	return &models.SessionClaims{Email: email, Role: models.RoleApplicant, Namespace: models.NamespaceApplicant}
}

func staffClaims() *models.SessionClaims {
	return &models.SessionClaims{Username: "officer", Role: models.RoleStaff, Namespace: models.NamespaceStaff}
}

func (f documentFixture) upload(t *testing.T, docType, name string, content []byte) (*models.DocumentUpload, error) {
	t.Helper()
	return f.docs.Upload(context.Background(), applicant,
		dto.UploadDocumentForm{ApplicationID: f.appID, DocumentType: docType},
		DocumentFile{Filename: name, Size: int64(len(content)), Content: bytes.NewReader(content)})
}

func TestUploadStoresDocument(t *testing.T) {
	f := newDocumentFixture(t)

	doc, err := f.upload(t, "PAN Card", "my pan.pdf", pdfBytes)
	require.NoError(t, err)
	assert.Equal(t, f.appID+"/pan_card_my_pan.pdf", doc.FilePath)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, models.VerificationPending, doc.Verification)
	assert.Equal(t, int64(len(pdfBytes)), doc.SizeBytes)

	record, err := f.svc.Get(context.Background(), f.appID)
	require.NoError(t, err)
	assert.Equal(t, []string{"PAN Card"}, []string(record.Comprehensive.UploadedDocuments))
	assert.Contains(t, f.store.historyActions(f.appID), models.ActionDocumentUploaded)
	assert.Contains(t, f.dispatcher.subjects(), "Document Uploaded Successfully - Application "+f.appID)

	var alertTypes []string
	for _, alert := range f.store.adminAlerts {
		alertTypes = append(alertTypes, alert.AlertType)
	}
	assert.Contains(t, alertTypes, "documents_uploaded")
}

func TestUploadRejectsBadFiles(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.upload(t, "PAN Card", "notes.txt", []byte("just some plain text"))
	assert.ErrorIs(t, err, appErrors.ErrUnsupportedMedia)

	_, err = f.upload(t, "PAN Card", "big.pdf", append(pdfBytes, bytes.Repeat([]byte("x"), 2048)...))
	assert.ErrorIs(t, err, appErrors.ErrPayloadTooLarge)

	_, err = f.upload(t, "PAN Card", "empty.pdf", nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Empty(t, f.store.documents)
}

func TestUploadRequiresOwnedOpenApplication(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	stranger := models.Principal{Email: "stranger@example.com", Role: models.RoleApplicant}
	_, err := f.docs.Upload(ctx, stranger, dto.UploadDocumentForm{ApplicationID: f.appID, DocumentType: "PAN Card"},
		DocumentFile{Filename: "pan.pdf", Size: int64(len(pdfBytes)), Content: bytes.NewReader(pdfBytes)})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	require.NoError(t, f.workflow.Reject(ctx, f.appID, "", "officer"))
	_, err = f.upload(t, "PAN Card", "pan.pdf", pdfBytes)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, f.store.documents)
}

func TestOpenEnforcesPathAndOwnership(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	doc, err := f.upload(t, "PAN Card", "pan.pdf", pdfBytes)
	require.NoError(t, err)

	for _, p := range []string{"../secret", "/" + f.appID + "/../../etc/passwd", "", f.appID + "/unknown.pdf"} {
		_, err := f.docs.Open(ctx, p, staffClaims())
		assert.ErrorIs(t, err, appErrors.ErrForbidden, p)
	}

	_, err = f.docs.Open(ctx, doc.FilePath, applicantClaims("stranger@example.com"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	download, err := f.docs.Open(ctx, "/"+doc.FilePath, applicantClaims(applicant.Email))
	require.NoError(t, err)
	defer download.File.Close()
	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, content)

	staffView, err := f.docs.Open(ctx, doc.FilePath, staffClaims())
	require.NoError(t, err)
	require.NoError(t, staffView.File.Close())
}

func TestVerifyDocument(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	doc, err := f.upload(t, "PAN Card", "pan.pdf", pdfBytes)
	require.NoError(t, err)

	verified, err := f.docs.Verify(ctx, doc.ID, dto.VerifyDocumentRequest{Verification: "rejected", Comment: "Blurry"}, "officer")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRejected, verified.Verification)
	assert.Contains(t, f.store.historyActions(f.appID), models.ActionDocumentVerified)

	docs, err := f.docs.List(ctx, f.appID, applicantClaims(applicant.Email))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Blurry", docs[0].AdminComments)

	_, err = f.docs.Verify(ctx, doc.ID, dto.VerifyDocumentRequest{Verification: "maybe"}, "officer")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.docs.Verify(ctx, "missing", dto.VerifyDocumentRequest{Verification: "approved"}, "officer")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.docs.List(ctx, f.appID, applicantClaims("stranger@example.com"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSignedLinkRoundTrip(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	doc, err := f.upload(t, "PAN Card", "pan.pdf", pdfBytes)
	require.NoError(t, err)

	link, err := f.docs.SignedLink(ctx, doc.ID, applicantClaims(applicant.Email))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/documents/download?token="))

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	download, err := f.docs.Download(ctx, parsed.Query().Get("token"))
	require.NoError(t, err)
	require.NoError(t, download.File.Close())
	assert.Equal(t, doc.FileName, download.Filename)

	_, err = f.docs.Download(ctx, "bogus.token")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.docs.SignedLink(ctx, doc.ID, applicantClaims("stranger@example.com"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStoredPathSanitizes(t *testing.T) {
	assert.Equal(t, "A1B2C3D4/bank_statements_6_months_stmt.pdf", storedPath("A1B2C3D4", "Bank Statements (6 months)", "stmt.pdf"))
	assert.Equal(t, "A1B2C3D4/photo_passwd", storedPath("A1B2C3D4", "Photo", "../../etc/passwd"))
	assert.Equal(t, "A1B2C3D4/document_document", storedPath("A1B2C3D4", "", ".."))
}
