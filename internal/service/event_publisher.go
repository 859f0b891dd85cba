package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/pkg/events"
)

// Lifecycle event types.
const (
	EventApplicationSubmitted = "application.submitted"
	EventStatusChanged        = "application.status_changed"
	EventObjectionRaised      = "application.objection_raised"
	EventResubmitted          = "application.resubmitted"
	EventDocumentUploaded     = "application.document_uploaded"
)

// LifecycleEvent is the JSON payload published for each workflow change.
type LifecycleEvent struct {
	EventID       string                   `json:"event_id"`
	Type          string                   `json:"type"`
	ApplicationID string                   `json:"application_id"`
	Status        models.ApplicationStatus `json:"status"`
	Actor         string                   `json:"actor"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// EventPublisher publishes lifecycle events keyed by application id.
// Failures are logged and never surface to the workflow.
type EventPublisher struct {
	publisher events.Publisher
	topic     string
	logger    *zap.Logger
}

// NewEventPublisher constructs the publisher. A nil publisher disables publishing.
func NewEventPublisher(publisher events.Publisher, topic string, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{publisher: publisher, topic: topic, logger: logger}
}

// Publish emits one lifecycle event.
func (p *EventPublisher) Publish(ctx context.Context, eventType, applicationID string, status models.ApplicationStatus, actor string) {
	if p == nil || p.publisher == nil {
		return
	}
	evt := LifecycleEvent{
		EventID:       uuid.NewString(),
		Type:          eventType,
		ApplicationID: applicationID,
		Status:        status,
		Actor:         actor,
		OccurredAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Warn("marshal lifecycle event", zap.Error(err))
		return
	}
	msg := events.Message{
		Key:     []byte(applicationID),
		Value:   payload,
		Headers: map[string]string{"event_type": eventType},
	}
	if err := p.publisher.Publish(ctx, p.topic, msg); err != nil {
		p.logger.Warn("publish lifecycle event failed",
			zap.String("type", eventType),
			zap.String("application_id", applicationID),
			zap.Error(err),
		)
	}
}
