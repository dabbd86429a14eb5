package notification

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Built-in template IDs.
const (
	TemplateScreenResult          = "screen-result"
	TemplateUnexpectedResultAlert = "unexpected-result-alert"
	TemplateConfirmationRequested = "confirmation-requested"
	TemplateConfirmationComplete  = "confirmation-complete"
)

// Template is a message with {{key}} placeholders in subject and body.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range builtInTemplates {
		e.templates[t.ID] = t
	}
	return e
}

var builtInTemplates = []Template{
	{
		ID:      TemplateScreenResult,
		Name:    "Screen Result",
		Subject: "Your test result from {{collection_date}}",
		Body: "Hello {{client_name}}, your {{test_type}} test collected on {{collection_date}} " +
			"has been reviewed. Result: {{result}}. Please contact the clinic with any questions.",
	},
	{
		ID:      TemplateUnexpectedResultAlert,
		Name:    "Unexpected Result Alert",
		Subject: "Decision needed: {{result}} for {{client_name}}",
		Body: "Test {{test_id}} for {{client_name}} ({{collection_date}}) screened as {{result}}. " +
			"Unexpected positives: {{unexpected_positives}}. Unexpected negatives: {{unexpected_negatives}}. " +
			"Dilute: {{dilute}}. A staff decision is required before the result is released.",
	},
	{
		ID:      TemplateConfirmationRequested,
		Name:    "Confirmation Requested",
		Subject: "Confirmation testing requested for {{client_name}}",
		Body: "Confirmation testing was requested for test {{test_id}} ({{collection_date}}). " +
			"Substances sent out: {{substances}}.",
	},
	{
		ID:      TemplateConfirmationComplete,
		Name:    "Confirmation Complete",
		Subject: "Your confirmation results are ready",
		Body: "Hello {{client_name}}, the laboratory confirmation for your test collected on " +
			"{{collection_date}} is complete. Results: {{results}}.",
	},
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Templates lists registered templates by ID.
func (e *TemplateEngine) Templates() []Template {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Template, 0, len(e.templates))
	for _, t := range e.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Render substitutes data into the template. Placeholders without a value are
// left in place.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}
