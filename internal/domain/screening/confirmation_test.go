package screening

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestIsConfirmationComplete(t *testing.T) {
	thcPositive := ConfirmationResult{Substance: SubstanceTHC, Result: OutcomeConfirmedPositive}

	tests := []struct {
		name      string
		decision  Decision
		requested []SubstanceCode
		results   []ConfirmationResult
		want      bool
	}{
		{"one of one", DecisionRequestConfirmation, []SubstanceCode{SubstanceTHC}, []ConfirmationResult{thcPositive}, true},
		{"one of two", DecisionRequestConfirmation, []SubstanceCode{SubstanceTHC, SubstanceCocaine}, []ConfirmationResult{thcPositive}, false},
		{"accepted", DecisionAccept, []SubstanceCode{SubstanceTHC}, []ConfirmationResult{thcPositive}, false},
		{"nothing requested", DecisionRequestConfirmation, nil, nil, false},
		{"undefined decision", DecisionUndefined, []SubstanceCode{SubstanceTHC}, []ConfirmationResult{thcPositive}, false},
		{"pending decision", DecisionPending, []SubstanceCode{SubstanceTHC}, []ConfirmationResult{thcPositive}, false},
		{"no results", DecisionRequestConfirmation, []SubstanceCode{SubstanceTHC}, nil, false},
		{"missing outcome", DecisionRequestConfirmation, []SubstanceCode{SubstanceTHC}, []ConfirmationResult{{Substance: SubstanceTHC}}, false},
		{"missing substance", DecisionRequestConfirmation, []SubstanceCode{SubstanceTHC}, []ConfirmationResult{{Result: OutcomeInconclusive}}, false},
		{"too many results", DecisionRequestConfirmation, []SubstanceCode{SubstanceTHC}, []ConfirmationResult{thcPositive, thcPositive}, false},
		{
			"membership not checked",
			DecisionRequestConfirmation,
			[]SubstanceCode{SubstanceTHC},
			[]ConfirmationResult{{Substance: SubstanceCocaine, Result: OutcomeConfirmedNegative}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfirmationComplete(tt.decision, tt.requested, tt.results); got != tt.want {
				t.Errorf("IsConfirmationComplete = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfirmationGaps(t *testing.T) {
	requested := []SubstanceCode{SubstanceTHC, SubstanceCocaine}
	results := []ConfirmationResult{
		{Substance: SubstanceTHC, Result: OutcomeConfirmedPositive},
		{Substance: SubstancePCP, Result: OutcomeConfirmedNegative},
		{Substance: SubstanceTHC, Result: OutcomeConfirmedPositive},
	}

	missing, unexpected := ConfirmationGaps(requested, results)
	if len(missing) != 1 || missing[0] != SubstanceCocaine {
		t.Errorf("missing = %v", missing)
	}
	if len(unexpected) != 2 || unexpected[0] != SubstancePCP || unexpected[1] != SubstanceTHC {
		t.Errorf("unexpected = %v", unexpected)
	}

	missing, unexpected = ConfirmationGaps(requested, []ConfirmationResult{
		{Substance: SubstanceCocaine, Result: OutcomeInconclusive},
		{Substance: SubstanceTHC, Result: OutcomeConfirmedNegative},
	})
	if len(missing) != 0 || len(unexpected) != 0 {
		t.Errorf("expected no gaps, got missing=%v unexpected=%v", missing, unexpected)
	}
}

func TestParseDecision(t *testing.T) {
	for _, raw := range []string{"", "accept", "request-confirmation", "pending-decision", " accept "} {
		if _, err := ParseDecision(raw); err != nil {
			t.Errorf("ParseDecision(%q): %v", raw, err)
		}
	}
	if _, err := ParseDecision("approve"); !errors.Is(err, ErrUnknownDecision) {
		t.Errorf("expected ErrUnknownDecision, got %v", err)
	}
}

func TestParseOutcome(t *testing.T) {
	if _, err := ParseOutcome(""); !errors.Is(err, ErrUnknownOutcome) {
		t.Errorf("empty outcome should be rejected, got %v", err)
	}
	if _, err := ParseOutcome("positive"); !errors.Is(err, ErrUnknownOutcome) {
		t.Errorf("expected ErrUnknownOutcome, got %v", err)
	}
	if o, err := ParseOutcome("inconclusive"); err != nil || o != OutcomeInconclusive {
		t.Errorf("got %q, %v", o, err)
	}
}

func TestConfirmationResult_UnmarshalJSON(t *testing.T) {
	var r ConfirmationResult
	if err := json.Unmarshal([]byte(`{"substance":"THC","result":"confirmed-positive","notes":"GC-MS"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Substance != SubstanceTHC || r.Result != OutcomeConfirmedPositive || r.Notes != "GC-MS" {
		t.Errorf("unexpected result: %+v", r)
	}

	if err := json.Unmarshal([]byte(`{"substance":"thc","result":"maybe"}`), &r); err == nil {
		t.Error("expected error for unknown outcome")
	}
}
