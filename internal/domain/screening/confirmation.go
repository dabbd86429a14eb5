package screening

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Decision is the staff decision on an initial screen.
type Decision string

const (
	DecisionUndefined           Decision = ""
	DecisionAccept              Decision = "accept"
	DecisionRequestConfirmation Decision = "request-confirmation"
	DecisionPending             Decision = "pending-decision"
)

// ConfirmationOutcome is the lab's answer for one substance sent out for confirmation.
type ConfirmationOutcome string

const (
	OutcomeConfirmedPositive ConfirmationOutcome = "confirmed-positive"
	OutcomeConfirmedNegative ConfirmationOutcome = "confirmed-negative"
	OutcomeInconclusive      ConfirmationOutcome = "inconclusive"
)

var (
	ErrUnknownDecision = errors.New("unknown confirmation decision")
	ErrUnknownOutcome  = errors.New("unknown confirmation result")
)

// ParseDecision validates a raw decision. The empty string is the undefined decision.
func ParseDecision(raw string) (Decision, error) {
	d := Decision(strings.TrimSpace(raw))
	switch d {
	case DecisionUndefined, DecisionAccept, DecisionRequestConfirmation, DecisionPending:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDecision, raw)
}

func (d *Decision) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseDecision(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseOutcome validates a raw confirmation result value.
func ParseOutcome(raw string) (ConfirmationOutcome, error) {
	o := ConfirmationOutcome(strings.TrimSpace(raw))
	switch o {
	case OutcomeConfirmedPositive, OutcomeConfirmedNegative, OutcomeInconclusive:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, raw)
}

func (o *ConfirmationOutcome) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseOutcome(raw)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ConfirmationResult is one entry returned by the confirmation lab.
type ConfirmationResult struct {
	Substance SubstanceCode       `json:"substance"`
	Result    ConfirmationOutcome `json:"result"`
	Notes     string              `json:"notes,omitempty"`
}

// IsConfirmationComplete reports whether a confirmation sub-workflow has a
// final answer: the decision requested confirmation, both lists are non-empty,
// there is exactly one result per requested substance, and every result names
// a substance and an outcome.
//
// Membership of each result substance in requested is not checked; see
// ConfirmationGaps.
func IsConfirmationComplete(decision Decision, requested []SubstanceCode, results []ConfirmationResult) bool {
	if decision != DecisionRequestConfirmation {
		return false
	}
	if len(requested) == 0 || len(results) == 0 {
		return false
	}
	if len(results) != len(requested) {
		return false
	}
	for _, r := range results {
		if r.Substance == "" || r.Result == "" {
			return false
		}
	}
	return true
}

// ConfirmationGaps lists requested substances with no result and result
// substances that were never requested, or that appear more than once. It is
// advisory only and never changes IsConfirmationComplete.
func ConfirmationGaps(requested []SubstanceCode, results []ConfirmationResult) (missing, unexpected []SubstanceCode) {
	want := NewSubstanceSet(requested...)
	seen := make(SubstanceSet, len(results))
	for _, r := range results {
		if !want.Has(r.Substance) || seen.Has(r.Substance) {
			unexpected = append(unexpected, r.Substance)
		}
		seen[r.Substance] = struct{}{}
	}
	for _, s := range want.Sorted() {
		if !seen.Has(s) {
			missing = append(missing, s)
		}
	}
	return missing, unexpected
}
