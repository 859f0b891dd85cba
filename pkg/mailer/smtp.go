package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/noah-isme/loan-portal-api/pkg/config"
)

// Email is a rendered message ready for delivery.
type Email struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Dialer abstracts gomail's dialer for tests.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through an authenticated STARTTLS relay.
type SMTPMailer struct {
	dialer    Dialer
	fromEmail string
	fromName  string
	timeout   time.Duration
}

// NewSMTPMailer builds a mailer from configuration.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return NewSMTPMailerWithDialer(d, cfg.FromEmail, cfg.FromName, cfg.Timeout)
}

// NewSMTPMailerWithDialer allows injecting a custom dialer.
func NewSMTPMailerWithDialer(d Dialer, fromEmail, fromName string, timeout time.Duration) *SMTPMailer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPMailer{dialer: d, fromEmail: fromEmail, fromName: fromName, timeout: timeout}
}

// Send delivers the message, bounded by the configured timeout and ctx.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return fmt.Errorf("recipient required")
	}
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, m.fromName)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.PlainBody)
	if email.HTMLBody != "" {
		msg.AddAlternative("text/html", email.HTMLBody)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}
