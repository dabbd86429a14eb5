package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// EmailSender delivers one rendered message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the log instead of delivering them. It is the
// default until a mail provider is configured.
type LogSender struct {
	logger zerolog.Logger
	from   string
}

func NewLogSender(logger zerolog.Logger, from string) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "notification").Logger(), from: from}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("from", s.from).
		Str("to", to).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("email queued")
	return nil
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
