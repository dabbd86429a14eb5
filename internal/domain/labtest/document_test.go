package labtest

import (
	"errors"
	"testing"
	"time"

	"github.com/clinicops/clinic/internal/domain/screening"
)

func TestParseExtractedDocument(t *testing.T) {
	doc, err := ParseExtractedDocument([]byte(`{
		"donorName": "  Doe, Jane ",
		"collectionDate": "2024-05-10",
		"testType": "Urine 12 Panel",
		"detectedSubstances": ["THC", "cocaine", "thc"]
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.DonorName != "Doe, Jane" || doc.TestType != "Urine 12 Panel" {
		t.Errorf("unexpected document %+v", doc)
	}
	if doc.CollectionDate == nil || !doc.CollectionDate.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("collection date = %v", doc.CollectionDate)
	}
	if doc.DetectedSubstances.Len() != 2 || !doc.DetectedSubstances.Has(screening.SubstanceCocaine) {
		t.Errorf("detected = %v", doc.DetectedSubstances.Sorted())
	}
}

func TestParseExtractedDocument_Partial(t *testing.T) {
	doc, err := ParseExtractedDocument([]byte(`{"collectionDate":"2024-05-10T14:30:00Z","detectedSubstances":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.DonorName != "" || doc.TestType != "" || doc.DetectedSubstances.Len() != 0 {
		t.Errorf("unexpected document %+v", doc)
	}
	q := doc.Query(screening.WorkflowConfirmation)
	if q.Workflow != screening.WorkflowConfirmation || q.CollectionDate == nil {
		t.Errorf("unexpected query %+v", q)
	}

	doc, err = ParseExtractedDocument([]byte(`{"collectionDate":"","detectedSubstances":["none"]}`))
	if err != nil || doc.CollectionDate != nil {
		t.Errorf("blank date should be absent, got %v, %v", doc, err)
	}
}

func TestParseExtractedDocument_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `donorName: Jane`},
		{"missing substances", `{"donorName":"Jane Doe"}`},
		{"null substances", `{"detectedSubstances":null}`},
		{"unknown field", `{"detectedSubstances":[],"lab":"Quest"}`},
		{"bad date", `{"collectionDate":"05/10/2024","detectedSubstances":[]}`},
		{"none with code", `{"detectedSubstances":["none","thc"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseExtractedDocument([]byte(tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := ParseExtractedDocument([]byte(`{"detectedSubstances":["glue"]}`))
	if !errors.Is(err, screening.ErrUnknownSubstance) {
		t.Errorf("expected ErrUnknownSubstance, got %v", err)
	}
}
