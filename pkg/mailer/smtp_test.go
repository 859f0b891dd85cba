package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type dialerStub struct {
	err   error
	delay time.Duration
	sent  []*gomail.Message
}

func (d *dialerStub) DialAndSend(msgs ...*gomail.Message) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.sent = append(d.sent, msgs...)
	return d.err
}

func TestSendBuildsMultipartMessage(t *testing.T) {
	stub := &dialerStub{}
	m := NewSMTPMailerWithDialer(stub, "bank@example.com", "AI Banking Portal", time.Second)

	err := m.Send(context.Background(), Email{
		To:        "asha@example.com",
		Subject:   "Loan Application Confirmed - A1B2C3D4",
		PlainBody: "Thanks",
		HTMLBody:  "<p>Thanks</p>",
	})
	require.NoError(t, err)
	require.Len(t, stub.sent, 1)

	msg := stub.sent[0]
	assert.Equal(t, []string{"asha@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Loan Application Confirmed - A1B2C3D4"}, msg.GetHeader("Subject"))
	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
	assert.Contains(t, buf.String(), "AI Banking Portal")
}

func TestSendPropagatesTransportError(t *testing.T) {
	m := NewSMTPMailerWithDialer(&dialerStub{err: errors.New("535 auth failed")}, "bank@example.com", "", time.Second)
	err := m.Send(context.Background(), Email{To: "asha@example.com", Subject: "x", PlainBody: "y"})
	assert.ErrorContains(t, err, "535 auth failed")
}

func TestSendTimesOut(t *testing.T) {
	m := NewSMTPMailerWithDialer(&dialerStub{delay: 200 * time.Millisecond}, "bank@example.com", "", 20*time.Millisecond)
	err := m.Send(context.Background(), Email{To: "asha@example.com", Subject: "x", PlainBody: "y"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendRequiresRecipient(t *testing.T) {
	m := NewSMTPMailerWithDialer(&dialerStub{}, "bank@example.com", "", time.Second)
	assert.Error(t, m.Send(context.Background(), Email{}))
}
