package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

const dashboardCachePattern = "dashboard:*"

type alertWriter interface {
	CreateUserAlert(ctx context.Context, alert *models.UserAlert) error
	CreateAdminAlert(ctx context.Context, alert *models.AdminAlert) error
}

type messageDispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// LifecycleHooks fans out the side effects that follow a committed
// application change. Every hook is best effort and only logs failures.
type LifecycleHooks struct {
	alerts     alertWriter
	notifier   messageDispatcher
	templates  *Templates
	events     *EventPublisher
	cache      cacheInvalidator
	metrics    *MetricsService
	adminEmail string
	logger     *zap.Logger
}

// HooksConfig carries the optional collaborators of LifecycleHooks.
type HooksConfig struct {
	Alerts     alertWriter
	Notifier   messageDispatcher
	Templates  *Templates
	Events     *EventPublisher
	Cache      cacheInvalidator
	Metrics    *MetricsService
	AdminEmail string
	Logger     *zap.Logger
}

// NewLifecycleHooks constructs the hook fan-out.
func NewLifecycleHooks(cfg HooksConfig) *LifecycleHooks {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Templates == nil {
		cfg.Templates = NewTemplates("")
	}
	return &LifecycleHooks{
		alerts:     cfg.Alerts,
		notifier:   cfg.Notifier,
		templates:  cfg.Templates,
		events:     cfg.Events,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		adminEmail: cfg.AdminEmail,
		logger:     cfg.Logger,
	}
}

func (h *LifecycleHooks) userAlert(ctx context.Context, email, applicationID, alertType, title, message string, priority models.AlertPriority) {
	if h.alerts == nil || email == "" {
		return
	}
	alert := &models.UserAlert{
		ID:            uuid.NewString(),
		UserEmail:     email,
		ApplicationID: applicationID,
		AlertType:     alertType,
		Title:         title,
		Message:       message,
		Priority:      priority,
	}
	if err := h.alerts.CreateUserAlert(ctx, alert); err != nil {
		h.logger.Warn("failed to create user alert", zap.String("application_id", applicationID), zap.String("type", alertType), zap.Error(err))
	}
}

// adminAlert stores a staff alert and mails the admin inbox when one is configured.
func (h *LifecycleHooks) adminAlert(ctx context.Context, applicationID, alertType, title, message string, priority models.AlertPriority) {
	if h.alerts != nil {
		alert := &models.AdminAlert{
			ID:            uuid.NewString(),
			ApplicationID: applicationID,
			AlertType:     alertType,
			Title:         title,
			Message:       message,
			Priority:      priority,
		}
		if err := h.alerts.CreateAdminAlert(ctx, alert); err != nil {
			h.logger.Warn("failed to create admin alert", zap.String("application_id", applicationID), zap.String("type", alertType), zap.Error(err))
		}
	}
	if h.adminEmail != "" {
		h.notify(ctx, h.templates.AdminAlert(h.adminEmail, applicationID, alertType, message))
	}
}

func (h *LifecycleHooks) notify(ctx context.Context, msg Message) {
	if h.notifier == nil || msg.To == "" {
		return
	}
	h.notifier.Dispatch(ctx, msg)
}

// changed records a status transition, then behaves like touched.
func (h *LifecycleHooks) changed(ctx context.Context, eventType, applicationID string, status models.ApplicationStatus, actor string) {
	h.metrics.RecordTransition(string(status))
	h.touched(ctx, eventType, applicationID, status, actor)
}

// touched publishes the lifecycle event and drops cached dashboards.
func (h *LifecycleHooks) touched(ctx context.Context, eventType, applicationID string, status models.ApplicationStatus, actor string) {
	h.events.Publish(ctx, eventType, applicationID, status, actor)
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
			h.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}
}
