package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/repository"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

const (
	defaultApproveNotes = "Application approved by admin"
	defaultRejectNotes  = "Application rejected by admin"
)

type applicationLocker interface {
	WithApplicationLock(ctx context.Context, id string, fn func(repository.LockedApplication) error) error
}

type applicationGetter interface {
	Get(ctx context.Context, id string) (*models.ApplicationRecord, error)
}

type documentLister interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.DocumentUpload, error)
}

// WorkflowService drives the review lifecycle: review, objection, resubmission and decision.
type WorkflowService struct {
	store        applicationLocker
	applications applicationGetter
	documents    documentLister
	hooks        *LifecycleHooks
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewWorkflowService constructs the workflow service.
func NewWorkflowService(store applicationLocker, applications applicationGetter, documents documentLister, hooks *LifecycleHooks, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if hooks == nil {
		hooks = NewLifecycleHooks(HooksConfig{Logger: logger})
	}
	return &WorkflowService{
		store:        store,
		applications: applications,
		documents:    documents,
		hooks:        hooks,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// StartReview moves an open application to under_review.
func (s *WorkflowService) StartReview(ctx context.Context, id, actor string) error {
	var owner string
	err := s.withLock(ctx, id, func(locked repository.LockedApplication) error {
		state := locked.State()
		if err := s.guard(state, models.StatusUnderReview); err != nil {
			return err
		}
		owner = state.OwnerEmail
		at := s.now().UTC()
		if err := locked.SetStatus(ctx, models.StatusChange{Status: models.StatusUnderReview, ReviewedBy: &actor, At: at}); err != nil {
			return err
		}
		return locked.AppendHistory(ctx, &models.HistoryEntry{
			ApplicationID: id,
			UserEmail:     owner,
			Status:        models.StatusUnderReview,
			Action:        models.ActionUnderReview,
			ActionBy:      actor,
			Reason:        "Review started",
			CreatedAt:     at,
		})
	})
	if err != nil {
		return err
	}

	s.hooks.userAlert(ctx, owner, id, "under_review", "Application Under Review",
		fmt.Sprintf("Your application %s is now being reviewed.", id), models.PriorityMedium)
	s.hooks.notify(ctx, s.hooks.templates.StatusUpdate(owner, s.applicantName(ctx, id), id, models.StatusUnderReview, ""))
	s.hooks.changed(ctx, EventStatusChanged, id, models.StatusUnderReview, actor)
	return nil
}

// RaiseObjection opens an objection. A pending objection on the same
// application is superseded first.
func (s *WorkflowService) RaiseObjection(ctx context.Context, id string, req dto.ObjectionRequest, actor string) (*models.Objection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid objection")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "objection_reason is required")
	}

	var objection models.Objection
	err := s.withLock(ctx, id, func(locked repository.LockedApplication) error {
		state := locked.State()
		if err := s.guard(state, models.StatusObjectionRaised); err != nil {
			return err
		}
		at := s.now().UTC()

		previous, err := locked.PendingObjection(ctx)
		if err != nil {
			return err
		}
		if previous != nil {
			if err := locked.SetObjectionStatus(ctx, previous.ObjectionID, models.ObjectionSuperseded, at); err != nil {
				return err
			}
			if err := locked.AppendHistory(ctx, &models.HistoryEntry{
				ApplicationID: id,
				UserEmail:     state.OwnerEmail,
				Status:        state.Status,
				Action:        models.ActionObjectionSuperseded,
				ActionBy:      actor,
				Reason:        fmt.Sprintf("Objection %s superseded", previous.ObjectionID),
				CreatedAt:     at,
			}); err != nil {
				return err
			}
		}

		objection = models.Objection{
			ApplicationID:      id,
			UserEmail:          state.OwnerEmail,
			Reason:             reason,
			RequestedDocuments: strings.TrimSpace(req.RequestedDocuments),
			Status:             models.ObjectionPending,
			CreatedBy:          actor,
			CreatedAt:          at,
		}
		if err := locked.CreateObjection(ctx, &objection); err != nil {
			return err
		}
		notes := "Objection raised: " + reason
		if err := locked.SetStatus(ctx, models.StatusChange{Status: models.StatusObjectionRaised, Notes: &notes, At: at}); err != nil {
			return err
		}
		return locked.AppendHistory(ctx, &models.HistoryEntry{
			ApplicationID: id,
			UserEmail:     state.OwnerEmail,
			Status:        models.StatusObjectionRaised,
			Action:        models.ActionObjectionRaised,
			ActionBy:      actor,
			Reason:        reason,
			CreatedAt:     at,
		})
	})
	if err != nil {
		return nil, err
	}

	s.hooks.userAlert(ctx, objection.UserEmail, id, "objection", "Action Required: Objection Raised",
		fmt.Sprintf("Your application %s needs attention: %s", id, reason), models.PriorityHigh)
	s.hooks.notify(ctx, s.hooks.templates.Objection(objection.UserEmail, id, reason, objection.RequestedDocuments))
	s.hooks.changed(ctx, EventObjectionRaised, id, models.StatusObjectionRaised, actor)
	return &objection, nil
}

// Resubmit resolves the pending objection for the applicant's own application.
func (s *WorkflowService) Resubmit(ctx context.Context, owner models.Principal, req dto.ResubmitRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid resubmission")
	}
	id := req.ApplicationID
	documents := s.uploadedDocuments(ctx, id)

	err := s.withLock(ctx, id, func(locked repository.LockedApplication) error {
		state := locked.State()
		if !strings.EqualFold(state.OwnerEmail, owner.Email) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		pending, err := locked.PendingObjection(ctx)
		if err != nil {
			return err
		}
		if pending == nil || state.Status != models.StatusObjectionRaised {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "no pending objection for this application")
		}
		at := s.now().UTC()
		if err := locked.SetObjectionStatus(ctx, pending.ObjectionID, models.ObjectionResolved, at); err != nil {
			return err
		}
		if err := locked.SetStatus(ctx, models.StatusChange{Status: models.StatusResubmitted, At: at}); err != nil {
			return err
		}
		reason := "Application resubmitted"
		if len(documents) > 0 {
			reason = "Application resubmitted with documents: " + strings.Join(documents, ", ")
		}
		return locked.AppendHistory(ctx, &models.HistoryEntry{
			ApplicationID: id,
			UserEmail:     state.OwnerEmail,
			Status:        models.StatusResubmitted,
			Action:        models.ActionResubmitted,
			ActionBy:      owner.Email,
			Reason:        reason,
			CreatedAt:     at,
		})
	})
	if err != nil {
		return err
	}

	s.hooks.adminAlert(ctx, id, "application_resubmitted", "Application Resubmitted",
		fmt.Sprintf("Application %s was resubmitted by %s", id, owner.Email), models.PriorityHigh)
	s.hooks.notify(ctx, s.hooks.templates.ResubmissionReceipt(owner.Email, id, documents))
	s.hooks.changed(ctx, EventResubmitted, id, models.StatusResubmitted, owner.Email)
	return nil
}

// Approve closes the application as approved.
func (s *WorkflowService) Approve(ctx context.Context, id, notes, actor string) error {
	return s.decide(ctx, id, models.StatusApproved, models.ActionApproved, notes, defaultApproveNotes, actor)
}

// Reject closes the application as rejected.
func (s *WorkflowService) Reject(ctx context.Context, id, notes, actor string) error {
	return s.decide(ctx, id, models.StatusRejected, models.ActionRejected, notes, defaultRejectNotes, actor)
}

func (s *WorkflowService) decide(ctx context.Context, id string, status models.ApplicationStatus, action models.HistoryAction, notes, defaultNotes, actor string) error {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		notes = defaultNotes
	}

	var owner string
	err := s.withLock(ctx, id, func(locked repository.LockedApplication) error {
		state := locked.State()
		if err := s.guard(state, status); err != nil {
			return err
		}
		owner = state.OwnerEmail
		at := s.now().UTC()
		if err := locked.SetStatus(ctx, models.StatusChange{Status: status, Notes: &notes, ReviewedBy: &actor, At: at}); err != nil {
			return err
		}
		if state.Status == models.StatusObjectionRaised {
			pending, err := locked.PendingObjection(ctx)
			if err != nil {
				return err
			}
			if pending != nil {
				if err := locked.SetObjectionStatus(ctx, pending.ObjectionID, models.ObjectionResolved, at); err != nil {
					return err
				}
			}
		}
		return locked.AppendHistory(ctx, &models.HistoryEntry{
			ApplicationID: id,
			UserEmail:     owner,
			Status:        status,
			Action:        action,
			ActionBy:      actor,
			Reason:        notes,
			CreatedAt:     at,
		})
	})
	if err != nil {
		return err
	}

	title, priority := "Application Approved", models.PriorityHigh
	if status == models.StatusRejected {
		title = "Application Rejected"
	}
	s.hooks.userAlert(ctx, owner, id, string(status), title,
		fmt.Sprintf("Application %s: %s", id, notes), priority)
	s.hooks.notify(ctx, s.hooks.templates.StatusUpdate(owner, s.applicantName(ctx, id), id, status, notes))
	s.hooks.changed(ctx, EventStatusChanged, id, status, actor)
	return nil
}

// guard rejects writes on closed applications and illegal moves.
func (s *WorkflowService) guard(state models.ApplicationState, next models.ApplicationStatus) error {
	if state.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("application is already %s", state.Status))
	}
	if !state.Status.CanTransitionTo(next) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move %s to %s", state.Status, next))
	}
	return nil
}

func (s *WorkflowService) withLock(ctx context.Context, id string, fn func(repository.LockedApplication) error) error {
	err := s.store.WithApplicationLock(ctx, id, fn)
	if err == nil {
		return nil
	}
	translated := translateLockError(err, "failed to update application")
	if errors.Is(translated, appErrors.ErrInternal) {
		s.logger.Error("workflow transaction failed", zap.String("application_id", id), zap.Error(err))
	}
	return translated
}

func (s *WorkflowService) uploadedDocuments(ctx context.Context, id string) []string {
	if s.documents == nil {
		return nil
	}
	docs, err := s.documents.ListByApplication(ctx, id)
	if err != nil {
		s.logger.Warn("failed to list uploaded documents", zap.String("application_id", id), zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.DocumentType)
	}
	return names
}

func (s *WorkflowService) applicantName(ctx context.Context, id string) string {
	if s.applications == nil {
		return ""
	}
	record, err := s.applications.Get(ctx, id)
	if err != nil {
		return ""
	}
	if record.Comprehensive != nil {
		return record.Comprehensive.FullName
	}
	return strings.TrimSpace(record.Basic.FirstName + " " + record.Basic.LastName)
}
