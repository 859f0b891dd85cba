package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/pkg/jobs"
	"github.com/noah-isme/loan-portal-api/pkg/mailer"
)

// MailSender delivers a rendered email.
type MailSender interface {
	Send(ctx context.Context, email mailer.Email) error
}

type notificationLogStore interface {
	Create(ctx context.Context, entry *models.NotificationLog) error
}

// NotificationConfig tunes the async dispatch pool.
type NotificationConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// NotificationService delivers email and records every outcome. Without a
// mail transport it logs the message and reports success.
type NotificationService struct {
	mailer  MailSender
	logs    notificationLogStore
	metrics *MetricsService
	logger  *zap.Logger
	queue   *jobs.Queue
}

// NewNotificationService constructs the dispatcher. mail may be nil.
func NewNotificationService(mail MailSender, logs notificationLogStore, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{mailer: mail, logs: logs, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:     cfg.Workers,
		BufferSize:  256,
		MaxRetries:  cfg.Retries,
		RetryDelay:  cfg.RetryDelay,
		Logger:      logger,
		OnExhausted: s.exhausted,
		OnAbandoned: s.abandoned,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight deliveries to return, then sends whatever was still
// queued or waiting on a retry inline so each message still gets a log entry.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Send delivers synchronously and records exactly one log entry. It never fails the caller.
func (s *NotificationService) Send(ctx context.Context, msg Message) bool {
	err := s.deliver(ctx, msg)
	s.record(ctx, msg, err)
	return err == nil
}

// Dispatch hands msg to the worker pool, sending inline when the pool is not running.
func (s *NotificationService) Dispatch(ctx context.Context, msg Message) {
	if msg.To == "" {
		return
	}
	if !s.queue.Running() {
		s.Send(ctx, msg)
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: msg.Category, Payload: msg}); err != nil {
		s.logger.Warn("notification enqueue failed, sending inline", zap.String("to", msg.To), zap.Error(err))
		s.Send(ctx, msg)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(Message)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.deliver(ctx, msg); err != nil {
		return err
	}
	// the queue context is cancelled on shutdown; the log row must still land
	s.record(context.WithoutCancel(ctx), msg, nil)
	return nil
}

func (s *NotificationService) exhausted(job jobs.Job, err error) {
	msg, ok := job.Payload.(Message)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.record(ctx, msg, err)
}

func (s *NotificationService) abandoned(job jobs.Job, _ error) {
	msg, ok := job.Payload.(Message)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.Send(ctx, msg)
}

func (s *NotificationService) deliver(ctx context.Context, msg Message) error {
	if s.mailer == nil {
		s.logger.Info("email notification logged, smtp not configured",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.String("category", msg.Category),
			zap.String("body", msg.PlainBody),
		)
		return nil
	}
	if err := s.mailer.Send(ctx, mailer.Email{To: msg.To, Subject: msg.Subject, PlainBody: msg.PlainBody, HTMLBody: msg.HTMLBody}); err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}

func (s *NotificationService) record(ctx context.Context, msg Message, sendErr error) {
	category := msg.Category
	if category == "" {
		category = "info"
	}
	if sendErr != nil {
		s.logger.Warn("email notification failed", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Error(sendErr))
		category += "_error"
	}
	s.metrics.RecordNotification(msg.Category, sendErr == nil)

	if s.logs == nil {
		return
	}
	entry := &models.NotificationLog{
		ID:       uuid.NewString(),
		Email:    msg.To,
		Subject:  msg.Subject,
		Message:  msg.PlainBody,
		Category: category,
		SentAt:   time.Now().UTC(),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record notification log", zap.String("to", msg.To), zap.Error(err))
	}
}
