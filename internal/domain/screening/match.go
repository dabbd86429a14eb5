package screening

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/clinicops/clinic/internal/platform/similarity"
)

// Workflow selects which pool of test records a document is matched against.
type Workflow string

const (
	WorkflowScreen       Workflow = "screen"
	WorkflowConfirmation Workflow = "confirmation"
)

// Screening statuses of a test record.
const (
	StatusPending              = "pending"
	StatusScreened             = "screened"
	StatusAwaitingConfirmation = "awaiting-confirmation"
	StatusCompleted            = "completed"
)

// CandidateStatuses returns the screening statuses callers should pre-filter
// candidates by. Ranking itself ignores status.
func CandidateStatuses(w Workflow) []string {
	if w == WorkflowConfirmation {
		return []string{StatusAwaitingConfirmation}
	}
	return []string{StatusPending}
}

// Confidence bands for a match score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"

	HighConfidenceScore   = 80
	MediumConfidenceScore = 60

	// ManualScore marks a record the user picked explicitly.
	ManualScore = 100
	// maxFuzzyScore keeps every computed score below ManualScore.
	maxFuzzyScore = ManualScore - 1
)

// ConfidenceFor maps a score to its band: >= 80 high (eligible for silent
// auto-match), 60-79 medium (needs explicit confirmation), below 60 low.
func ConfidenceFor(score int) Confidence {
	switch {
	case score >= HighConfidenceScore:
		return ConfidenceHigh
	case score >= MediumConfidenceScore:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MatchWeights split the composite score between its three signals.
type MatchWeights struct {
	Name     float64
	Date     float64
	TestType float64
}

// DefaultMatchWeights let a perfect name plus same-day collection reach the
// high band on its own, while a perfect name with no date lands in medium.
func DefaultMatchWeights() MatchWeights {
	return MatchWeights{Name: 0.60, Date: 0.30, TestType: 0.10}
}

const (
	// dateDecayDays is the e-folding distance of the date signal.
	dateDecayDays = 3.0
	// maxDateDistanceDays is the distance beyond which the date signal is zero.
	maxDateDistanceDays = 14
)

// CandidateTest is a test record offered for matching.
type CandidateTest struct {
	ID              string    `json:"id"`
	ClientName      string    `json:"client_name"`
	CollectionDate  time.Time `json:"collection_date"`
	TestType        string    `json:"test_type"`
	ScreeningStatus string    `json:"screening_status"`
	ClientHeadshot  string    `json:"client_headshot,omitempty"`
}

// MatchQuery is what an extracted document (or a manual search) knows about
// the test it belongs to. Zero values mean unknown.
type MatchQuery struct {
	DonorName      string
	CollectionDate *time.Time
	TestType       string
	Workflow       Workflow
}

// TestMatch is one ranked candidate.
type TestMatch struct {
	Test       CandidateTest `json:"test"`
	Score      int           `json:"score"`
	Confidence Confidence    `json:"confidence"`
	Manual     bool          `json:"manual,omitempty"`
}

// ManualMatch records a user's explicit pick.
func ManualMatch(t CandidateTest) TestMatch {
	return TestMatch{Test: t, Score: ManualScore, Confidence: ConfidenceHigh, Manual: true}
}

// RankTests scores every candidate against q with DefaultMatchWeights.
func RankTests(candidates []CandidateTest, q MatchQuery) []TestMatch {
	return DefaultMatchWeights().Rank(candidates, q)
}

// RankTestsWithSelection ranks candidates and moves the selected one, if any,
// to the top with ManualScore.
func RankTestsWithSelection(candidates []CandidateTest, q MatchQuery, selectedID string) []TestMatch {
	return DefaultMatchWeights().RankWithSelection(candidates, q, selectedID)
}

// RankWithSelection is Rank with an explicit pick pinned first. An unknown
// selectedID leaves the ranking untouched.
func (w MatchWeights) RankWithSelection(candidates []CandidateTest, q MatchQuery, selectedID string) []TestMatch {
	ranked := w.Rank(candidates, q)
	if selectedID == "" {
		return ranked
	}
	for i, m := range ranked {
		if m.Test.ID != selectedID {
			continue
		}
		out := make([]TestMatch, 0, len(ranked))
		out = append(out, ManualMatch(m.Test))
		out = append(out, ranked[:i]...)
		out = append(out, ranked[i+1:]...)
		return out
	}
	return ranked
}

// Rank scores candidates and sorts them best first. Ties keep input order.
// Missing query fields contribute nothing.
func (w MatchWeights) Rank(candidates []CandidateTest, q MatchQuery) []TestMatch {
	out := make([]TestMatch, 0, len(candidates))
	donor := similarity.SplitName(q.DonorName)
	hasDonor := strings.TrimSpace(q.DonorName) != ""

	for _, c := range candidates {
		var name float64
		if hasDonor {
			name = similarity.NameSimilarity(donor, similarity.SplitName(c.ClientName))
		}
		composite := w.Name*name +
			w.Date*DateProximity(q.CollectionDate, c.CollectionDate) +
			w.TestType*TestTypeScore(q.TestType, c.TestType)

		score := int(math.Round(composite * 100))
		if score < 0 {
			score = 0
		}
		if score > maxFuzzyScore {
			score = maxFuzzyScore
		}
		out = append(out, TestMatch{Test: c, Score: score, Confidence: ConfidenceFor(score)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// DateProximity is 1 for the same calendar day and decays over following days.
func DateProximity(query *time.Time, candidate time.Time) float64 {
	if query == nil || query.IsZero() || candidate.IsZero() {
		return 0
	}
	days := calendarDays(*query, candidate)
	if days > maxDateDistanceDays {
		return 0
	}
	return math.Exp(-float64(days) / dateDecayDays)
}

// calendarDays counts UTC calendar days so the result does not depend on the
// location each time carries.
func calendarDays(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(da.Sub(db).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

// TestTypeScore is 1 for the same test type, 0.5 when one is a specialisation
// of the other ("urine" vs "urine 12-panel"), otherwise 0.
func TestTypeScore(query, candidate string) float64 {
	q := normalizeTestType(query)
	c := normalizeTestType(candidate)
	switch {
	case q == "" || c == "":
		return 0
	case q == c:
		return 1
	case strings.Contains(q, c) || strings.Contains(c, q):
		return 0.5
	default:
		return 0
	}
}

func normalizeTestType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
