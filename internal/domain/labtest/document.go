package labtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clinicops/clinic/internal/domain/screening"
)

// ExtractedDocument is the validated output of the PDF extraction step.
// Every field except DetectedSubstances may be missing.
type ExtractedDocument struct {
	DonorName          string                 `json:"donorName,omitempty"`
	CollectionDate     *time.Time             `json:"collectionDate,omitempty"`
	TestType           string                 `json:"testType,omitempty"`
	DetectedSubstances screening.SubstanceSet `json:"detectedSubstances"`
}

type rawDocument struct {
	DonorName          string    `json:"donorName"`
	CollectionDate     string    `json:"collectionDate"`
	TestType           string    `json:"testType"`
	DetectedSubstances *[]string `json:"detectedSubstances"`
}

var documentDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly}

// ParseExtractedDocument validates extractor JSON. Unknown fields, unknown
// substance codes and unparseable dates are rejected.
func ParseExtractedDocument(data []byte) (*ExtractedDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var raw rawDocument
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode extracted document: %w", err)
	}
	if raw.DetectedSubstances == nil {
		return nil, fmt.Errorf("detectedSubstances is required")
	}

	detected, err := screening.ParseSubstanceSet(*raw.DetectedSubstances)
	if err != nil {
		return nil, fmt.Errorf("detectedSubstances: %w", err)
	}

	doc := &ExtractedDocument{
		DonorName:          strings.TrimSpace(raw.DonorName),
		TestType:           strings.TrimSpace(raw.TestType),
		DetectedSubstances: detected,
	}
	if s := strings.TrimSpace(raw.CollectionDate); s != "" {
		d, err := parseDocumentDate(s)
		if err != nil {
			return nil, err
		}
		doc.CollectionDate = &d
	}
	return doc, nil
}

func parseDocumentDate(s string) (time.Time, error) {
	for _, layout := range documentDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("collectionDate %q is not an ISO-8601 date", s)
}

// Query builds the matcher input for the given workflow.
func (d *ExtractedDocument) Query(w screening.Workflow) screening.MatchQuery {
	return screening.MatchQuery{
		DonorName:      d.DonorName,
		CollectionDate: d.CollectionDate,
		TestType:       d.TestType,
		Workflow:       w,
	}
}
