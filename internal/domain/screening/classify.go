package screening

// MedicationSnapshot is the classification-relevant copy of one active
// medication, frozen when a test result is recorded.
type MedicationSnapshot struct {
	Name                string       `json:"name"`
	DetectedAs          SubstanceSet `json:"detected_as"`
	RequireConfirmation bool         `json:"require_confirmation"`
}

// ScreenResult is the overall label of an initial screen.
type ScreenResult string

const (
	ResultNegative           ScreenResult = "negative"
	ResultExpectedPositive   ScreenResult = "expected-positive"
	ResultUnexpectedPositive ScreenResult = "unexpected-positive"
	ResultUnexpectedNegative ScreenResult = "unexpected-negative"
	ResultMixedUnexpected    ScreenResult = "mixed-unexpected"

	// DiluteSuffix is appended to the label of a dilute specimen.
	DiluteSuffix = "-dilute"
)

// Base strips the dilute suffix.
func (r ScreenResult) Base() ScreenResult {
	if n := len(r) - len(DiluteSuffix); n > 0 && string(r[n:]) == DiluteSuffix {
		return r[:n]
	}
	return r
}

// Classification is the outcome of reconciling a screen with medications.
type Classification struct {
	ExpectedPositives   SubstanceSet `json:"expected_positives"`
	UnexpectedPositives SubstanceSet `json:"unexpected_positives"`
	UnexpectedNegatives SubstanceSet `json:"unexpected_negatives"`
	InitialScreenResult ScreenResult `json:"initial_screen_result"`
	Dilute              bool         `json:"dilute"`
	Inconclusive        bool         `json:"inconclusive"`
	AutoAccept          bool         `json:"auto_accept"`
}

// HasUnexpected reports whether any finding needs a staff decision.
func (c Classification) HasUnexpected() bool {
	return c.UnexpectedPositives.Len() > 0 || c.UnexpectedNegatives.Len() > 0
}

// Policy holds the configurable parts of classification.
type Policy struct {
	// AutoAcceptInconclusive lets a dilute specimen with no unexpected
	// findings finalize without a staff decision.
	AutoAcceptInconclusive bool
}

// DefaultPolicy sends every dilute specimen to a staff decision.
var DefaultPolicy = Policy{}

// Classify labels detected substances against active medications with DefaultPolicy.
func Classify(detected SubstanceSet, meds []MedicationSnapshot, dilute bool) Classification {
	return DefaultPolicy.Classify(detected, meds, dilute)
}

// Classify labels detected substances against active medications. A substance
// is expected when some medication is detected as it. A RequireConfirmation
// medication none of whose substances were detected yields unexpected
// negatives for all of them.
func (p Policy) Classify(detected SubstanceSet, meds []MedicationSnapshot, dilute bool) Classification {
	explained := make(SubstanceSet)
	for _, m := range meds {
		for s := range m.DetectedAs {
			if s != SubstanceNone {
				explained[s] = struct{}{}
			}
		}
	}

	c := Classification{
		ExpectedPositives:   make(SubstanceSet),
		UnexpectedPositives: make(SubstanceSet),
		UnexpectedNegatives: make(SubstanceSet),
		Dilute:              dilute,
	}

	for s := range detected {
		if s == SubstanceNone {
			continue
		}
		if explained.Has(s) {
			c.ExpectedPositives[s] = struct{}{}
		} else {
			c.UnexpectedPositives[s] = struct{}{}
		}
	}

	for _, m := range meds {
		if !m.RequireConfirmation {
			continue
		}
		var required []SubstanceCode
		shown := false
		for s := range m.DetectedAs {
			if s == SubstanceNone {
				continue
			}
			required = append(required, s)
			if detected.Has(s) {
				shown = true
			}
		}
		if shown {
			continue
		}
		for _, s := range required {
			c.UnexpectedNegatives[s] = struct{}{}
		}
	}

	up, un := c.UnexpectedPositives.Len() > 0, c.UnexpectedNegatives.Len() > 0
	switch {
	case up && un:
		c.InitialScreenResult = ResultMixedUnexpected
	case up:
		c.InitialScreenResult = ResultUnexpectedPositive
	case un:
		c.InitialScreenResult = ResultUnexpectedNegative
	case c.ExpectedPositives.Len() > 0:
		c.InitialScreenResult = ResultExpectedPositive
	default:
		c.InitialScreenResult = ResultNegative
	}

	if dilute {
		c.InitialScreenResult += DiluteSuffix
		c.Inconclusive = !up && !un
	}

	c.AutoAccept = !up && !un && (!dilute || p.AutoAcceptInconclusive)
	return c
}
