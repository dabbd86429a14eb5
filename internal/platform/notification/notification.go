// Package notification renders and sends client and staff messages and keeps
// an in-memory record of every attempt.
package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one outbound message and the outcome of sending it.
type Notification struct {
	ID           string            `json:"id"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Manager sends notifications and stores the results.
type Manager struct {
	sender    EmailSender
	templates *TemplateEngine

	mu            sync.RWMutex
	notifications map[string]*Notification
}

func NewManager(sender EmailSender, templates *TemplateEngine) *Manager {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Manager{
		sender:        sender,
		templates:     templates,
		notifications: make(map[string]*Notification),
	}
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	n.Attempts++
	err := m.sender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	now := time.Now().UTC()
	n.Status = StatusSent
	n.SentAt = &now
	n.Error = ""
	return nil
}

// Send delivers n and records it. The record is kept even when delivery fails.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()

	err := m.deliver(ctx, n)

	m.mu.Lock()
	m.notifications[n.ID] = n
	m.mu.Unlock()
	return err
}

// SendFromTemplate renders templateID with data and sends it to recipient.
// The returned notification is non-nil whenever rendering succeeded.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	n := &Notification{
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	return n, m.Send(ctx, n)
}

func (m *Manager) Get(id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// List returns notifications newest first, optionally for one recipient.
func (m *Manager) List(recipient string, limit int) []*Notification {
	m.mu.RLock()
	var out []*Notification
	for _, n := range m.notifications {
		if recipient == "" || n.Recipient == recipient {
			out = append(out, n)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	if n.Status != StatusFailed {
		return n, fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}
	return n, m.deliver(ctx, n)
}

// Stats counts notifications by status.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]int)
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}
