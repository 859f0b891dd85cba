package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/repository"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type documentStore interface {
	GetByID(ctx context.Context, id string) (*models.DocumentUpload, error)
	FindByPath(ctx context.Context, relPath string) (*models.DocumentUpload, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.DocumentUpload, error)
	UpdateVerification(ctx context.Context, id string, verification models.Verification, comment, verifiedBy string, at time.Time) error
}

type ownedApplicationGetter interface {
	GetOwned(ctx context.Context, id, ownerEmail string) (*models.ApplicationRecord, error)
}

type historyAppender interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
}

type documentFileStorage interface {
	SaveStream(filename string, r io.Reader) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	Resolve(filename string) (string, error)
}

type documentSigner interface {
	Generate(subjectID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (subjectID, relPath string, expiresAt time.Time, err error)
}

// DocumentFile carries an uploaded file stream and its client metadata.
type DocumentFile struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// DocumentDownload bundles an opened file for streaming.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// DocumentServiceConfig holds upload limits and link settings.
type DocumentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// DocumentService tracks applicant uploads and staff verification.
type DocumentService struct {
	store        applicationLocker
	applications ownedApplicationGetter
	documents    documentStore
	history      historyAppender
	storage      documentFileStorage
	signer       documentSigner
	hooks        *LifecycleHooks
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          DocumentServiceConfig
	mimeSet      map[string]struct{}
	now          func() time.Time
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(store applicationLocker, applications ownedApplicationGetter, documents documentStore, history historyAppender, storage documentFileStorage, signer documentSigner, hooks *LifecycleHooks, validate *validator.Validate, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if hooks == nil {
		hooks = NewLifecycleHooks(HooksConfig{Logger: logger})
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return &DocumentService{
		store:        store,
		applications: applications,
		documents:    documents,
		history:      history,
		storage:      storage,
		signer:       signer,
		hooks:        hooks,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		mimeSet:      mimeSet,
		now:          time.Now,
	}
}

// Upload stores a document against the owner's open application.
func (s *DocumentService) Upload(ctx context.Context, owner models.Principal, form dto.UploadDocumentForm, file DocumentFile) (*models.DocumentUpload, error) {
	if err := s.validator.Struct(form); err != nil {
		return nil, appErrors.Validation(err, "invalid upload")
	}
	if file.Content == nil || file.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document file is required")
	}
	if file.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(file.Content)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[mimeType]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("file type %s not allowed", mimeType))
	}

	applicationID := form.ApplicationID
	docType := strings.TrimSpace(form.DocumentType)
	relPath := storedPath(applicationID, docType, file.Filename)
	doc := &models.DocumentUpload{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		UserEmail:     owner.Email,
		DocumentType:  docType,
		FileName:      path.Base(relPath),
		FilePath:      relPath,
		MimeType:      mimeType,
		Verification:  models.VerificationPending,
		UploadedAt:    s.now().UTC(),
	}

	var (
		status models.ApplicationStatus
		saved  bool
	)
	err = s.store.WithApplicationLock(ctx, applicationID, func(locked repository.LockedApplication) error {
		state := locked.State()
		if !strings.EqualFold(state.OwnerEmail, owner.Email) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		if state.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("application is already %s", state.Status))
		}
		status = state.Status
		if _, err := file.Content.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind upload: %w", err)
		}
		written, err := s.storage.SaveStream(relPath, file.Content)
		if err != nil {
			return fmt.Errorf("store document: %w", err)
		}
		saved = true
		doc.SizeBytes = written
		if err := locked.RecordDocument(ctx, doc); err != nil {
			return err
		}
		if err := locked.AppendUploadedDocument(ctx, docType); err != nil {
			return err
		}
		return locked.AppendHistory(ctx, &models.HistoryEntry{
			ApplicationID: applicationID,
			UserEmail:     owner.Email,
			Status:        state.Status,
			Action:        models.ActionDocumentUploaded,
			ActionBy:      owner.Email,
			Reason:        fmt.Sprintf("Uploaded %s (%s)", docType, doc.FileName),
			CreatedAt:     doc.UploadedAt,
		})
	})
	if err != nil {
		if saved {
			if delErr := s.storage.Delete(relPath); delErr != nil {
				s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(delErr))
			}
		}
		return nil, translateLockError(err, "failed to record document")
	}

	s.hooks.adminAlert(ctx, applicationID, "documents_uploaded", "New Document Uploaded",
		fmt.Sprintf("%s uploaded %s for application %s", owner.Email, docType, applicationID), models.PriorityMedium)
	s.hooks.notify(ctx, s.hooks.templates.DocumentReceipt(owner.Email, applicationID, docType))
	s.hooks.touched(ctx, EventDocumentUploaded, applicationID, status, owner.Email)
	return doc, nil
}

// List returns the documents of an application. Applicants only see their own.
func (s *DocumentService) List(ctx context.Context, applicationID string, actor *models.SessionClaims) ([]models.DocumentUpload, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsStaff() {
		if _, err := s.applications.GetOwned(ctx, applicationID, actor.Email); err != nil {
			return nil, err
		}
	}
	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list documents")
	}
	return docs, nil
}

// Verify records a staff decision on one document.
func (s *DocumentService) Verify(ctx context.Context, documentID string, req dto.VerifyDocumentRequest, actor string) (*models.DocumentUpload, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid verification")
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	verification := models.Verification(req.Verification)
	at := s.now().UTC()
	if err := s.documents.UpdateVerification(ctx, documentID, verification, req.Comment, actor, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to verify document")
	}
	doc.Verification = verification
	doc.AdminComments = req.Comment
	doc.VerifiedBy = &actor
	doc.VerifiedAt = &at

	reason := fmt.Sprintf("%s %s", doc.DocumentType, verification)
	if req.Comment != "" {
		reason += ": " + req.Comment
	}
	if err := s.history.Append(ctx, &models.HistoryEntry{
		ApplicationID: doc.ApplicationID,
		UserEmail:     doc.UserEmail,
		Action:        models.ActionDocumentVerified,
		ActionBy:      actor,
		Reason:        reason,
		CreatedAt:     at,
	}); err != nil {
		s.logger.Warn("failed to append history", zap.String("document_id", documentID), zap.Error(err))
	}

	priority := models.PriorityLow
	if verification == models.VerificationRejected {
		priority = models.PriorityHigh
	}
	s.hooks.userAlert(ctx, doc.UserEmail, doc.ApplicationID, "document_"+string(verification),
		"Document "+titleWords(string(verification)),
		fmt.Sprintf("Your %s for application %s was %s.", doc.DocumentType, doc.ApplicationID, verification), priority)
	return doc, nil
}

// Open resolves a stored document path for viewing. Paths outside the
// uploads root or not matching a recorded upload are forbidden.
func (s *DocumentService) Open(ctx context.Context, relPath string, actor *models.SessionClaims) (*DocumentDownload, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	cleaned := strings.TrimPrefix(relPath, "/")
	if cleaned == "" || strings.Contains(cleaned, "\\") {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid document path")
	}
	cleaned = path.Clean(cleaned)
	if _, err := s.storage.Resolve(cleaned); err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid document path")
	}
	doc, err := s.documents.FindByPath(ctx, cleaned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "document not accessible")
		}
		return nil, appErrors.Internal(err, "failed to load document")
	}
	if !strings.HasPrefix(doc.FilePath, doc.ApplicationID+"/") {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document not accessible")
	}
	if !actor.IsStaff() && !strings.EqualFold(doc.UserEmail, actor.Email) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document not accessible")
	}
	return s.open(doc)
}

// SignedLink returns a time-limited download link for a document.
func (s *DocumentService) SignedLink(ctx context.Context, documentID string, actor *models.SessionClaims) (*dto.SignedLinkResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && !strings.EqualFold(doc.UserEmail, actor.Email) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate download token")
	}
	return &dto.SignedLinkResponse{
		URL:       fmt.Sprintf("%s/documents/download?token=%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Download opens the document named by a signed token.
func (s *DocumentService) Download(ctx context.Context, token string) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	return s.open(doc)
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.DocumentUpload, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) open(doc *models.DocumentUpload) (*DocumentDownload, error) {
	file, err := s.storage.Open(doc.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document file missing")
		}
		return nil, appErrors.Internal(err, "failed to open document")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Internal(err, "failed to read document metadata")
	}
	return &DocumentDownload{
		File:      file,
		Filename:  doc.FileName,
		MimeType:  doc.MimeType,
		SizeBytes: info.Size(),
	}, nil
}

func (s *DocumentService) detectMime(content io.ReadSeeker) (string, error) {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Internal(err, "failed to read upload")
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", appErrors.Internal(err, "failed to read upload")
	}
	mimeType := http.DetectContentType(head[:n])
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType)), nil
}

// storedPath builds {application_id}/{document_type}_{file name} with unsafe
// characters replaced.
func storedPath(applicationID, documentType, filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "document"
	}
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "document"
	}
	kind := strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(documentType), "_"), "._")
	if kind == "" {
		kind = "document"
	}
	return applicationID + "/" + kind + "_" + base
}

// translateLockError maps unit-of-work failures to typed errors.
func translateLockError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "application not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Clone(appErrors.ErrConflict, "application was modified concurrently, retry")
	default:
		return appErrors.Internal(err, message)
	}
}
