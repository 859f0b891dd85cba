package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/pkg/mailer"
)

type stubMailer struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	sent  []mailer.Email
	calls int
}

func (s *stubMailer) Send(_ context.Context, email mailer.Email) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, email)
	return nil
}

type memoryNotificationLogs struct {
	mu      sync.Mutex
	entries []models.NotificationLog
}

func (m *memoryNotificationLogs) Create(_ context.Context, entry *models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryNotificationLogs) snapshot() []models.NotificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.NotificationLog(nil), m.entries...)
}

func TestNotificationSendWithoutTransport(t *testing.T) {
	logs := &memoryNotificationLogs{}
	svc := NewNotificationService(nil, logs, nil, nil, NotificationConfig{})

	for i := 0; i < 3; i++ {
		ok := svc.Send(context.Background(), Message{To: "a@example.com", Subject: "Hello", PlainBody: "body", Category: CategoryConfirmation})
		assert.True(t, ok)
	}

	entries := logs.snapshot()
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, CategoryConfirmation, entry.Category)
		assert.Equal(t, "a@example.com", entry.Email)
	}
}

func TestNotificationSendFailureRecordsErrorCategory(t *testing.T) {
	logs := &memoryNotificationLogs{}
	mail := &stubMailer{err: errors.New("535 authentication failed")}
	svc := NewNotificationService(mail, logs, NewMetricsService(), nil, NotificationConfig{})

	ok := svc.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Category: CategoryObjection})

	assert.False(t, ok)
	entries := logs.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "objection_error", entries[0].Category)
}

func TestNotificationSendDelivers(t *testing.T) {
	logs := &memoryNotificationLogs{}
	mail := &stubMailer{}
	svc := NewNotificationService(mail, logs, nil, nil, NotificationConfig{})

	ok := svc.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", PlainBody: "p", HTMLBody: "<p>h</p>", Category: CategoryStatusUpdate})

	assert.True(t, ok)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "<p>h</p>", mail.sent[0].HTMLBody)
	assert.Equal(t, CategoryStatusUpdate, logs.snapshot()[0].Category)
}

func TestNotificationDispatchInlineWhenStopped(t *testing.T) {
	logs := &memoryNotificationLogs{}
	svc := NewNotificationService(nil, logs, nil, nil, NotificationConfig{})

	svc.Dispatch(context.Background(), Message{To: "a@example.com", Category: CategoryDocumentUpload})
	svc.Dispatch(context.Background(), Message{Category: CategoryDocumentUpload})

	assert.Len(t, logs.snapshot(), 1)
}

func TestNotificationDispatchAsync(t *testing.T) {
	logs := &memoryNotificationLogs{}
	mail := &stubMailer{}
	svc := NewNotificationService(mail, logs, nil, nil, NotificationConfig{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Dispatch(context.Background(), Message{To: "a@example.com", Subject: "Queued", Category: CategoryConfirmation})

	require.Eventually(t, func() bool { return len(logs.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, CategoryConfirmation, logs.snapshot()[0].Category)
}

func TestNotificationDispatchRecordsExhaustedFailureOnce(t *testing.T) {
	logs := &memoryNotificationLogs{}
	mail := &stubMailer{err: errors.New("dial tcp: i/o timeout")}
	svc := NewNotificationService(mail, logs, nil, nil, NotificationConfig{Workers: 1, Retries: 1, RetryDelay: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Dispatch(context.Background(), Message{To: "a@example.com", Category: CategoryAdminAlert})

	require.Eventually(t, func() bool { return len(logs.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "admin_alert_error", logs.snapshot()[0].Category)
	mail.mu.Lock()
	assert.Equal(t, 2, mail.calls)
	mail.mu.Unlock()
}

func TestNotificationStopDeliversQueuedMessages(t *testing.T) {
	logs := &memoryNotificationLogs{}
	mail := &stubMailer{delay: 50 * time.Millisecond}
	svc := NewNotificationService(mail, logs, nil, nil, NotificationConfig{Workers: 1})
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		svc.Dispatch(context.Background(), Message{To: "a@example.com", Subject: "Queued", Category: CategoryConfirmation})
	}
	svc.Stop()

	entries := logs.snapshot()
	require.Len(t, entries, 5)
	for _, entry := range entries {
		assert.Equal(t, CategoryConfirmation, entry.Category)
	}
	mail.mu.Lock()
	assert.Len(t, mail.sent, 5)
	mail.mu.Unlock()
}

func TestNotificationStopDuringRetryRecordsFailure(t *testing.T) {
	logs := &memoryNotificationLogs{}
	mail := &stubMailer{err: errors.New("connection refused")}
	svc := NewNotificationService(mail, logs, nil, nil, NotificationConfig{Workers: 1, Retries: 3, RetryDelay: time.Hour})
	svc.Start(context.Background())

	svc.Dispatch(context.Background(), Message{To: "a@example.com", Category: CategoryObjection})
	require.Eventually(t, func() bool {
		mail.mu.Lock()
		defer mail.mu.Unlock()
		return mail.calls == 1
	}, time.Second, 5*time.Millisecond)
	svc.Stop()

	entries := logs.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "objection_error", entries[0].Category)
}

func TestTemplatesSubjects(t *testing.T) {
	tpl := NewTemplates("https://portal.example.com/")
	tpl.now = func() time.Time { return scoringNow }

	msg := tpl.Objection("a@example.com", "AB12CD34", "Income proof unclear", "Salary Slips, Form 16")
	assert.Equal(t, "📋 Document Resubmission Required - Application AB12CD34", msg.Subject)
	assert.Equal(t, CategoryObjection, msg.Category)
	assert.Contains(t, msg.PlainBody, "- Form 16")
	assert.Contains(t, msg.HTMLBody, "https://portal.example.com/apply")

	msg = tpl.DocumentReceipt("a@example.com", "AB12CD34", "PAN Card")
	assert.Equal(t, "Document Uploaded Successfully - Application AB12CD34", msg.Subject)

	msg = tpl.StatusUpdate("a@example.com", "Asha", "AB12CD34", models.StatusApproved, "Welcome aboard")
	assert.Equal(t, "🎉 Application Update - AB12CD34", msg.Subject)
	assert.Contains(t, msg.PlainBody, `"Welcome aboard"`)

	msg = tpl.AdminAlert("ops@example.com", "AB12CD34", "documents_uploaded", "PAN Card uploaded")
	assert.Equal(t, "📤 Admin Alert - Documents Uploaded - AB12CD34", msg.Subject)

	msg = tpl.SubmissionConfirmation("a@example.com", "", "AB12CD34", models.Assessment{Status: models.VerdictConditional, Reason: "CIBIL score below 650"})
	assert.Equal(t, "✅ Loan Application Confirmed - AB12CD34", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.PlainBody, "Application AB12CD34 Received"))
	assert.Contains(t, msg.PlainBody, "Dear Applicant,")
}

func TestTemplatesEscapeHTML(t *testing.T) {
	msg := NewTemplates("").Objection("a@example.com", "X1", "<script>alert(1)</script>", "")
	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.Contains(t, msg.PlainBody, "<script>")
}
