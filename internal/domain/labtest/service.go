package labtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/domain/client"
	"github.com/clinicops/clinic/internal/domain/screening"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/internal/platform/notification"
)

var (
	// ErrFinalized is returned for any write to a released test.
	ErrFinalized = errors.New("test is finalized")
	// ErrInvalidTransition is returned when an operation does not apply to
	// the test's current screening status.
	ErrInvalidTransition = errors.New("invalid screening status transition")
)

// Clients is the part of the client service a test workflow reads.
type Clients interface {
	GetClient(ctx context.Context, id uuid.UUID) (*client.Client, error)
	ActiveMedications(ctx context.Context, clientID uuid.UUID) ([]*client.Medication, error)
}

type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Config struct {
	Policy  screening.Policy
	Weights screening.MatchWeights
	// AdminAlertEmail receives decision-needed alerts. Empty disables them.
	AdminAlertEmail string
}

type Service struct {
	tests     TestRepository
	snapshots SnapshotRepository
	clients   Clients
	notifier  Notifier
	txb       db.TxBeginner
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(tests TestRepository, snapshots SnapshotRepository, clients Clients, notifier Notifier, txb db.TxBeginner, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Weights == (screening.MatchWeights{}) {
		cfg.Weights = screening.DefaultMatchWeights()
	}
	return &Service{
		tests:     tests,
		snapshots: snapshots,
		clients:   clients,
		notifier:  notifier,
		txb:       txb,
		cfg:       cfg,
		logger:    logger.With().Str("component", "labtest").Logger(),
		now:       time.Now,
	}
}

// -- Intake --

func (s *Service) CreateTest(ctx context.Context, t *TestRecord) error {
	if t.ClientID == uuid.Nil {
		return fmt.Errorf("client_id is required")
	}
	if t.CollectionDate.IsZero() {
		return fmt.Errorf("collection_date is required")
	}
	c, err := s.clients.GetClient(ctx, t.ClientID)
	if err != nil {
		return fmt.Errorf("client %s: %w", t.ClientID, err)
	}

	t.ClientName = c.FullName()
	t.TestType = strings.TrimSpace(t.TestType)
	t.ScreeningStatus = screening.StatusPending
	t.DetectedSubstances = screening.NewSubstanceSet()
	t.Dilute = false
	t.Classification = nil
	t.Decision = screening.DecisionUndefined
	t.ConfirmationSubstances = nil
	t.ConfirmationResults = nil
	t.FinalizedAt = nil
	return s.tests.Create(ctx, t)
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*TestRecord, error) {
	return s.tests.GetByID(ctx, id)
}

func (s *Service) ListTests(ctx context.Context, f ListFilter, limit, offset int) ([]*TestRecord, int, error) {
	return s.tests.List(ctx, f, limit, offset)
}

func (s *Service) Snapshots(ctx context.Context, testID uuid.UUID) ([]*MedicationsSnapshot, error) {
	if _, err := s.tests.GetByID(ctx, testID); err != nil {
		return nil, err
	}
	return s.snapshots.List(ctx, testID)
}

// -- Matching --

// MatchDocument ranks the tests awaiting the workflow's next step against doc.
// A non-empty selectedID pins that test first with a manual score.
func (s *Service) MatchDocument(ctx context.Context, doc *ExtractedDocument, workflow screening.Workflow, selectedID string) ([]screening.TestMatch, error) {
	if workflow != screening.WorkflowScreen && workflow != screening.WorkflowConfirmation {
		return nil, fmt.Errorf("workflow must be %q or %q", screening.WorkflowScreen, screening.WorkflowConfirmation)
	}
	candidates, err := s.tests.ListCandidates(ctx, screening.CandidateStatuses(workflow))
	if err != nil {
		return nil, fmt.Errorf("list match candidates: %w", err)
	}
	return s.cfg.Weights.RankWithSelection(candidates, doc.Query(workflow), selectedID), nil
}

// -- Screening --

func (s *Service) activeSnapshots(ctx context.Context, clientID uuid.UUID) ([]screening.MedicationSnapshot, error) {
	meds, err := s.clients.ActiveMedications(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("active medications: %w", err)
	}
	return client.Snapshots(meds), nil
}

// PreviewClassification classifies detected against the client's current
// active medications without storing anything.
func (s *Service) PreviewClassification(ctx context.Context, testID uuid.UUID, detected screening.SubstanceSet, dilute bool) (screening.Classification, error) {
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return screening.Classification{}, err
	}
	if t.IsFinalized() {
		return screening.Classification{}, ErrFinalized
	}
	meds, err := s.activeSnapshots(ctx, t.ClientID)
	if err != nil {
		return screening.Classification{}, err
	}
	return s.cfg.Policy.Classify(detected, meds, dilute), nil
}

// RecordScreen stores a screen result against a pending test or re-records
// one still waiting on a decision. The medications used are appended as a new
// snapshot version. Results that need no decision are finalized at once.
func (s *Service) RecordScreen(ctx context.Context, testID uuid.UUID, detected screening.SubstanceSet, dilute bool) (*TestRecord, error) {
	if detected == nil {
		detected = screening.NewSubstanceSet()
	}
	var out *TestRecord
	err := db.WithTx(ctx, s.txb, func(ctx context.Context) error {
		t, err := s.tests.GetForUpdate(ctx, testID)
		if err != nil {
			return err
		}
		if t.IsFinalized() {
			return ErrFinalized
		}
		if t.ScreeningStatus != screening.StatusPending && t.ScreeningStatus != screening.StatusScreened {
			return fmt.Errorf("%w: cannot record a screen while %s", ErrInvalidTransition, t.ScreeningStatus)
		}

		meds, err := s.activeSnapshots(ctx, t.ClientID)
		if err != nil {
			return err
		}
		if _, err := s.snapshots.Append(ctx, t.ID, meds); err != nil {
			return fmt.Errorf("append medications snapshot: %w", err)
		}

		c := s.cfg.Policy.Classify(detected, meds, dilute)
		t.DetectedSubstances = detected
		t.Dilute = dilute
		t.Classification = &c
		if c.AutoAccept {
			t.Decision = screening.DecisionAccept
			s.finalize(t)
		} else {
			t.Decision = screening.DecisionPending
			t.ScreeningStatus = screening.StatusScreened
		}
		if err := s.tests.Update(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.IsFinalized() {
		s.notifyClient(ctx, out, notification.TemplateScreenResult, nil)
	} else {
		s.alertAdmin(ctx, out)
	}
	return out, nil
}

// Decide applies a staff decision to a screened test. Accept releases the
// result; request-confirmation sends substances out for confirmation testing.
func (s *Service) Decide(ctx context.Context, testID uuid.UUID, decision screening.Decision, substances []screening.SubstanceCode) (*TestRecord, error) {
	var requested []screening.SubstanceCode
	switch decision {
	case screening.DecisionAccept:
	case screening.DecisionRequestConfirmation:
		var err error
		if requested, err = normalizeSubstances(substances); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("decision must be %q or %q", screening.DecisionAccept, screening.DecisionRequestConfirmation)
	}

	var out *TestRecord
	err := db.WithTx(ctx, s.txb, func(ctx context.Context) error {
		t, err := s.tests.GetForUpdate(ctx, testID)
		if err != nil {
			return err
		}
		if t.IsFinalized() {
			return ErrFinalized
		}
		if t.ScreeningStatus != screening.StatusScreened {
			return fmt.Errorf("%w: cannot decide while %s", ErrInvalidTransition, t.ScreeningStatus)
		}

		t.Decision = decision
		if decision == screening.DecisionAccept {
			s.finalize(t)
		} else {
			t.ConfirmationSubstances = requested
			t.ConfirmationResults = nil
			t.ScreeningStatus = screening.StatusAwaitingConfirmation
		}
		if err := s.tests.Update(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.IsFinalized() {
		s.notifyClient(ctx, out, notification.TemplateScreenResult, nil)
	} else {
		s.notifyClient(ctx, out, notification.TemplateConfirmationRequested, map[string]string{
			"substances": joinCodes(out.ConfirmationSubstances),
		})
	}
	return out, nil
}

func normalizeSubstances(raw []screening.SubstanceCode) ([]screening.SubstanceCode, error) {
	set := screening.NewSubstanceSet()
	for _, code := range raw {
		if !code.Valid() || code == screening.SubstanceNone {
			return nil, fmt.Errorf("%w: %q", screening.ErrUnknownSubstance, code)
		}
		set[code] = struct{}{}
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("substances are required to request confirmation")
	}
	return set.Sorted(), nil
}

// RecordConfirmationResults merges lab results into a test awaiting
// confirmation, one result per substance with later results replacing
// earlier ones. The test is finalized once every requested substance has an
// outcome.
func (s *Service) RecordConfirmationResults(ctx context.Context, testID uuid.UUID, results []screening.ConfirmationResult) (*TestRecord, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("results are required")
	}
	for _, r := range results {
		if !r.Substance.Valid() || r.Substance == screening.SubstanceNone {
			return nil, fmt.Errorf("%w: %q", screening.ErrUnknownSubstance, r.Substance)
		}
		if _, err := screening.ParseOutcome(string(r.Result)); err != nil {
			return nil, err
		}
	}

	var out *TestRecord
	err := db.WithTx(ctx, s.txb, func(ctx context.Context) error {
		t, err := s.tests.GetForUpdate(ctx, testID)
		if err != nil {
			return err
		}
		if t.IsFinalized() {
			return ErrFinalized
		}
		if t.ScreeningStatus != screening.StatusAwaitingConfirmation {
			return fmt.Errorf("%w: cannot record confirmation results while %s", ErrInvalidTransition, t.ScreeningStatus)
		}

		requested := screening.NewSubstanceSet(t.ConfirmationSubstances...)
		for _, r := range results {
			if !requested.Has(r.Substance) {
				return fmt.Errorf("confirmation was not requested for %q", r.Substance)
			}
		}
		t.ConfirmationResults = mergeResults(t.ConfirmationResults, results)

		if screening.IsConfirmationComplete(t.Decision, t.ConfirmationSubstances, t.ConfirmationResults) {
			s.finalize(t)
		}
		if err := s.tests.Update(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.IsFinalized() {
		s.notifyClient(ctx, out, notification.TemplateConfirmationComplete, map[string]string{
			"results": formatResults(out.ConfirmationResults),
		})
	}
	return out, nil
}

func mergeResults(existing, incoming []screening.ConfirmationResult) []screening.ConfirmationResult {
	out := make([]screening.ConfirmationResult, 0, len(existing)+len(incoming))
	index := make(map[screening.SubstanceCode]int)
	for _, r := range append(append([]screening.ConfirmationResult{}, existing...), incoming...) {
		if i, ok := index[r.Substance]; ok {
			out[i] = r
			continue
		}
		index[r.Substance] = len(out)
		out = append(out, r)
	}
	return out
}

func (s *Service) finalize(t *TestRecord) {
	now := s.now().UTC()
	t.FinalizedAt = &now
	t.ScreeningStatus = screening.StatusCompleted
}

// -- Notifications --

func (s *Service) templateData(t *TestRecord) map[string]string {
	data := map[string]string{
		"test_id":         t.ID.String(),
		"client_name":     t.ClientName,
		"collection_date": t.CollectionDate.Format(time.DateOnly),
		"test_type":       t.TestType,
		"dilute":          fmt.Sprintf("%t", t.Dilute),
	}
	if t.Classification != nil {
		data["result"] = string(t.Classification.InitialScreenResult)
		data["unexpected_positives"] = joinCodes(t.Classification.UnexpectedPositives.Sorted())
		data["unexpected_negatives"] = joinCodes(t.Classification.UnexpectedNegatives.Sorted())
	}
	return data
}

// notifyClient never fails the caller; the test is already committed.
func (s *Service) notifyClient(ctx context.Context, t *TestRecord, templateID string, extra map[string]string) {
	c, err := s.clients.GetClient(ctx, t.ClientID)
	if err != nil {
		s.logger.Error().Err(err).Str("test_id", t.ID.String()).Msg("client lookup for notification failed")
		return
	}
	if c.Email == "" {
		s.logger.Warn().Str("test_id", t.ID.String()).Msg("client has no email, notification skipped")
		return
	}
	data := s.templateData(t)
	for k, v := range extra {
		data[k] = v
	}
	s.send(ctx, t, templateID, data, c.Email)
}

func (s *Service) alertAdmin(ctx context.Context, t *TestRecord) {
	if s.cfg.AdminAlertEmail == "" {
		return
	}
	s.send(ctx, t, notification.TemplateUnexpectedResultAlert, s.templateData(t), s.cfg.AdminAlertEmail)
}

func (s *Service) send(ctx context.Context, t *TestRecord, templateID string, data map[string]string, recipient string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.SendFromTemplate(ctx, templateID, data, recipient); err != nil {
		s.logger.Error().Err(err).
			Str("test_id", t.ID.String()).
			Str("template", templateID).
			Msg("notification failed")
	}
}

func joinCodes(codes []screening.SubstanceCode) string {
	if len(codes) == 0 {
		return "none"
	}
	return strings.Join(codeStrings(codes), ", ")
}

func formatResults(results []screening.ConfirmationResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("%s %s", r.Substance, r.Result)
	}
	return strings.Join(parts, ", ")
}
