package service

import (
	"context"
	"database/sql"
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

const maxIDAttempts = 3

type applicationStore interface {
	CreateComprehensive(ctx context.Context, app *models.LoanApplication) error
	CreateBasic(ctx context.Context, app *models.BasicApplication) error
	GetComprehensive(ctx context.Context, id string) (*models.LoanApplication, error)
	GetBasic(ctx context.Context, id string) (*models.BasicApplication, error)
	ListComprehensive(ctx context.Context, ownerEmail string) ([]models.LoanApplication, error)
	ListBasic(ctx context.Context, email string) ([]models.BasicApplication, error)
	WithApplicationLock(ctx context.Context, id string, fn func(repository.LockedApplication) error) error
}

type historyStore interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
	ListByApplication(ctx context.Context, applicationID string) ([]models.HistoryEntry, error)
}

type objectionReader interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.Objection, error)
	ListPendingByEmail(ctx context.Context, email string) ([]models.Objection, error)
}

type alertStore interface {
	ListUserAlerts(ctx context.Context, email string, unreadOnly bool) ([]models.UserAlert, error)
	ListAdminAlerts(ctx context.Context, unreadOnly bool) ([]models.AdminAlert, error)
	MarkUserAlertRead(ctx context.Context, id, email string) error
	MarkAdminAlertRead(ctx context.Context, id string) error
}

type eligibilityAssessor interface {
	Assess(ctx context.Context, facts models.ApplicantFacts, loan models.LoanRequest) models.Assessment
}

// ApplicationService owns submission, lookup and listing of loan applications.
type ApplicationService struct {
	store      applicationStore
	history    historyStore
	objections objectionReader
	alerts     alertStore
	scorer     eligibilityAssessor
	hooks      *LifecycleHooks
	validator  *validator.Validate
	logger     *zap.Logger
	newID      func() string
	now        func() time.Time
}

// NewApplicationService constructs the service.
func NewApplicationService(store applicationStore, history historyStore, objections objectionReader, alerts alertStore, scorer eligibilityAssessor, hooks *LifecycleHooks, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if hooks == nil {
		hooks = NewLifecycleHooks(HooksConfig{Logger: logger})
	}
	return &ApplicationService{
		store:      store,
		history:    history,
		objections: objections,
		alerts:     alerts,
		scorer:     scorer,
		hooks:      hooks,
		validator:  validate,
		logger:     logger,
		newID:      repository.ShortID,
		now:        time.Now,
	}
}

// Submit scores and stores a comprehensive application for the signed-in applicant.
func (s *ApplicationService) Submit(ctx context.Context, owner models.Principal, req dto.ComprehensiveApplicationRequest) (*dto.SubmitApplicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid application payload")
	}
	if !req.AnnualIncome.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "annual_income must be greater than zero")
	}
	if !req.LoanAmount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "loan_amount must be greater than zero")
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_of_birth must be YYYY-MM-DD")
	}

	facts := models.ApplicantFacts{
		FullName:       req.FullName,
		DateOfBirth:    &dob,
		Gender:         req.Gender,
		MaritalStatus:  req.MaritalStatus,
		Nationality:    req.Nationality,
		EmploymentType: req.EmploymentType,
		EmployerName:   req.EmployerName,
		AnnualIncome:   req.AnnualIncome,
		ExistingLoans:  req.ExistingLoans,
		CibilScore:     req.CibilScore,
	}
	loan := models.LoanRequest{
		LoanType:     req.LoanType,
		Amount:       req.LoanAmount,
		TenureYears:  req.LoanTenure,
		Purpose:      req.LoanPurpose,
		PreferredEMI: req.PreferredEMI,
	}
	assessment := s.scorer.Assess(ctx, facts, loan)

	app := &models.LoanApplication{
		UserEmail:         owner.Email,
		FullName:          req.FullName,
		DateOfBirth:       &dob,
		Gender:            req.Gender,
		MaritalStatus:     req.MaritalStatus,
		Nationality:       req.Nationality,
		ContactNumber:     req.ContactNumber,
		EmploymentType:    req.EmploymentType,
		EmployerName:      req.EmployerName,
		AnnualIncome:      req.AnnualIncome,
		ExistingLoans:     req.ExistingLoans,
		CibilScore:        req.CibilScore,
		LoanType:          req.LoanType,
		LoanAmount:        req.LoanAmount,
		LoanTenure:        req.LoanTenure,
		LoanPurpose:       req.LoanPurpose,
		PreferredEMI:      req.PreferredEMI,
		EligibilityStatus: assessment.Status,
		EligibilityReason: assessment.Reason,
		RequiredDocuments: assessment.Documents,
		Recommendations:   assessment.Recommendations,
		AssessmentSource:  assessment.Source,
		Status:            models.StatusEligibilityAssessed,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.insertWithFreshID(ctx, func(id string) error {
		app.ApplicationID = id
		return s.store.CreateComprehensive(ctx, app)
	}); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &models.HistoryEntry{
		ApplicationID: app.ApplicationID,
		UserEmail:     app.UserEmail,
		Status:        app.Status,
		Action:        models.ActionSubmitted,
		ActionBy:      owner.Email,
		Reason:        fmt.Sprintf("Eligibility %s: %s", assessment.Status, assessment.Reason),
	})

	s.hooks.userAlert(ctx, app.UserEmail, app.ApplicationID, "application_submitted",
		"Application Submitted",
		fmt.Sprintf("Your application %s has been assessed: %s", app.ApplicationID, humanVerdict(assessment.Status)),
		models.PriorityMedium)
	s.hooks.adminAlert(ctx, app.ApplicationID, "new_application", "New Loan Application Submitted",
		fmt.Sprintf("Application %s from %s for %s", app.ApplicationID, app.FullName, orNotSpecified(app.LoanType)),
		models.PriorityMedium)
	s.hooks.notify(ctx, s.hooks.templates.SubmissionConfirmation(app.UserEmail, app.FullName, app.ApplicationID, assessment))
	s.hooks.changed(ctx, EventApplicationSubmitted, app.ApplicationID, app.Status, owner.Email)

	return &dto.SubmitApplicationResponse{ApplicationID: app.ApplicationID, Status: app.Status, Assessment: &assessment}, nil
}

// SubmitBasic stores the legacy nine-field form without scoring.
func (s *ApplicationService) SubmitBasic(ctx context.Context, req dto.BasicApplicationRequest) (*dto.SubmitApplicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid application payload")
	}
	app := &models.BasicApplication{
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:            req.Phone,
		LoanType:         req.LoanType,
		LoanAmount:       req.LoanAmount,
		AnnualIncome:     req.AnnualIncome,
		EmploymentStatus: req.EmploymentStatus,
		Purpose:          req.Purpose,
		Status:           models.StatusSubmitted,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.insertWithFreshID(ctx, func(id string) error {
		app.ApplicationID = id
		return s.store.CreateBasic(ctx, app)
	}); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &models.HistoryEntry{
		ApplicationID: app.ApplicationID,
		UserEmail:     app.Email,
		Status:        app.Status,
		Action:        models.ActionSubmitted,
		ActionBy:      app.Email,
		Reason:        "Basic application form",
	})
	s.hooks.adminAlert(ctx, app.ApplicationID, "new_application", "New Loan Application Submitted",
		fmt.Sprintf("Application %s from %s %s", app.ApplicationID, app.FirstName, app.LastName), models.PriorityMedium)
	s.hooks.changed(ctx, EventApplicationSubmitted, app.ApplicationID, app.Status, app.Email)

	return &dto.SubmitApplicationResponse{ApplicationID: app.ApplicationID, Status: app.Status}, nil
}

func (s *ApplicationService) insertWithFreshID(ctx context.Context, insert func(id string) error) error {
	var err error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		err = insert(s.newID())
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return appErrors.Internal(err, "failed to store application")
		}
		s.logger.Warn("application id collision, retrying", zap.Int("attempt", attempt+1))
	}
	return appErrors.Internal(err, "failed to allocate application id")
}

// Get loads an application from either schema.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	app, err := s.store.GetComprehensive(ctx, id)
	if err == nil {
		return &models.ApplicationRecord{Comprehensive: app}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load application")
	}
	basic, err := s.store.GetBasic(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Internal(err, "failed to load application")
	}
	return &models.ApplicationRecord{Basic: basic}, nil
}

// GetOwned loads an application and checks it belongs to ownerEmail.
// Foreign applications read as not found.
func (s *ApplicationService) GetOwned(ctx context.Context, id, ownerEmail string) (*models.ApplicationRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(record.OwnerEmail(), ownerEmail) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return record, nil
}

// ListForOwner returns both schemas for one applicant, newest first.
func (s *ApplicationService) ListForOwner(ctx context.Context, email string) ([]models.ApplicationView, error) {
	if strings.TrimSpace(email) == "" {
		return []models.ApplicationView{}, nil
	}
	return s.listViews(ctx, email)
}

// ListAll returns normalized applications from both schemas for staff.
func (s *ApplicationService) ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationView, *models.Pagination, error) {
	views, err := s.listViews(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	views = filterViews(views, filter)
	page, meta := paginateViews(views, filter.Page, filter.PageSize)
	return page, meta, nil
}

// AllViews returns every normalized application without paging.
func (s *ApplicationService) AllViews(ctx context.Context) ([]models.ApplicationView, error) {
	return s.listViews(ctx, "")
}

func (s *ApplicationService) listViews(ctx context.Context, email string) ([]models.ApplicationView, error) {
	comprehensive, err := s.store.ListComprehensive(ctx, email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list applications")
	}
	basic, err := s.store.ListBasic(ctx, email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list applications")
	}
	return mergeViews(comprehensive, basic), nil
}

// UpdateStatus applies a staff status change. It reports false for unknown
// ids, illegal transitions and storage failures, and never returns an error.
func (s *ApplicationService) UpdateStatus(ctx context.Context, id string, params models.UpdateStatusParams) bool {
	var owner string
	err := s.store.WithApplicationLock(ctx, id, func(locked repository.LockedApplication) error {
		state := locked.State()
		if workflowOnlyStatus(state.Status, params.Status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s is set through the objection workflow", params.Status))
		}
		if !statusChangeAllowed(state.Status, params.Status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move %s to %s", state.Status, params.Status))
		}
		owner = state.OwnerEmail
		change := models.StatusChange{
			Status:       params.Status,
			Notes:        params.Notes,
			Verification: params.Verification,
			At:           s.now().UTC(),
		}
		if params.Actor != "" {
			actor := params.Actor
			change.ReviewedBy = &actor
		}
		if err := locked.SetStatus(ctx, change); err != nil {
			return err
		}
		if state.Status == models.StatusObjectionRaised && params.Status != state.Status {
			pending, err := locked.PendingObjection(ctx)
			if err != nil {
				return err
			}
			if pending != nil {
				if err := locked.SetObjectionStatus(ctx, pending.ObjectionID, models.ObjectionResolved, change.At); err != nil {
					return err
				}
			}
		}
		reason := ""
		if params.Notes != nil {
			reason = *params.Notes
		}
		return locked.AppendHistory(ctx, &models.HistoryEntry{
			ApplicationID: id,
			UserEmail:     state.OwnerEmail,
			Status:        params.Status,
			Action:        models.ActionStatusUpdated,
			ActionBy:      params.Actor,
			Reason:        reason,
			CreatedAt:     change.At,
		})
	})
	if err != nil {
		s.logger.Warn("status update rejected",
			zap.String("application_id", id),
			zap.String("status", string(params.Status)),
			zap.Error(err),
		)
		return false
	}

	notes := ""
	if params.Notes != nil {
		notes = *params.Notes
	}
	s.hooks.userAlert(ctx, owner, id, "status_update", "Application Status Updated",
		fmt.Sprintf("Application %s is now %s", id, strings.ReplaceAll(string(params.Status), "_", " ")), models.PriorityMedium)
	switch params.Status {
	case models.StatusApproved, models.StatusRejected, models.StatusUnderReview:
		s.hooks.notify(ctx, s.hooks.templates.StatusUpdate(owner, "", id, params.Status, notes))
	}
	s.hooks.changed(ctx, EventStatusChanged, id, params.Status, params.Actor)
	return true
}

// workflowOnlyStatus reports moves that must go through RaiseObjection or
// Resubmit so the objection record stays in step with the status.
func workflowOnlyStatus(from, to models.ApplicationStatus) bool {
	if from == to {
		return false
	}
	return to == models.StatusObjectionRaised || to == models.StatusResubmitted
}

// statusChangeAllowed accepts graph transitions plus notes-only writes on open applications.
func statusChangeAllowed(from, to models.ApplicationStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return !from.Terminal()
	}
	return from.CanTransitionTo(to)
}

// ListDrafts returns objected applications awaiting action from the applicant.
func (s *ApplicationService) ListDrafts(ctx context.Context, email string) ([]models.Draft, error) {
	pending, err := s.objections.ListPendingByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list objections")
	}
	drafts := make([]models.Draft, 0, len(pending))
	for _, objection := range pending {
		record, err := s.Get(ctx, objection.ApplicationID)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if record.Status() != models.StatusObjectionRaised {
			continue
		}
		var view models.ApplicationView
		if record.Comprehensive != nil {
			view = viewFromComprehensive(*record.Comprehensive)
		} else {
			view = viewFromBasic(*record.Basic)
		}
		drafts = append(drafts, models.Draft{Application: view, Objection: objection})
	}
	return drafts, nil
}

// History returns the audit trail. A non-empty ownerEmail restricts access to that applicant.
func (s *ApplicationService) History(ctx context.Context, id, ownerEmail string) ([]models.HistoryEntry, error) {
	if ownerEmail != "" {
		if _, err := s.GetOwned(ctx, id, ownerEmail); err != nil {
			return nil, err
		}
	}
	entries, err := s.history.ListByApplication(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load history")
	}
	return entries, nil
}

// UserAlerts lists alerts for an applicant.
func (s *ApplicationService) UserAlerts(ctx context.Context, email string, unreadOnly bool) ([]models.UserAlert, error) {
	alerts, err := s.alerts.ListUserAlerts(ctx, email, unreadOnly)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list alerts")
	}
	return alerts, nil
}

// MarkUserAlertRead flags an applicant alert as read.
func (s *ApplicationService) MarkUserAlertRead(ctx context.Context, id, email string) error {
	if err := s.alerts.MarkUserAlertRead(ctx, id, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return appErrors.Internal(err, "failed to update alert")
	}
	return nil
}

// AdminAlerts lists staff alerts.
func (s *ApplicationService) AdminAlerts(ctx context.Context, unreadOnly bool) ([]models.AdminAlert, error) {
	alerts, err := s.alerts.ListAdminAlerts(ctx, unreadOnly)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list alerts")
	}
	return alerts, nil
}

// MarkAdminAlertRead flags a staff alert as read.
func (s *ApplicationService) MarkAdminAlertRead(ctx context.Context, id string) error {
	if err := s.alerts.MarkAdminAlertRead(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return appErrors.Internal(err, "failed to update alert")
	}
	return nil
}

func (s *ApplicationService) appendHistory(ctx context.Context, entry *models.HistoryEntry) {
	if s.history == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append history", zap.String("application_id", entry.ApplicationID), zap.Error(err))
	}
}

