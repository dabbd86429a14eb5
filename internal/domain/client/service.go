package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/domain/formulary"
	"github.com/clinicops/clinic/internal/domain/screening"
	"github.com/clinicops/clinic/internal/platform/cache"
	"github.com/clinicops/clinic/internal/platform/search"
)

// ErrDiscontinued is returned when a discontinued medication is edited.
var ErrDiscontinued = errors.New("medication is discontinued")

const candidatesKey = "clients:candidates"

// MedicationDefaults supplies detected_as and require_confirmation for known
// medication names.
type MedicationDefaults interface {
	Lookup(name string) (formulary.Entry, bool)
}

type Service struct {
	clients  ClientRepository
	meds     MedicationRepository
	defaults MedicationDefaults
	cache    *cache.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(clients ClientRepository, meds MedicationRepository, defaults MedicationDefaults, logger zerolog.Logger) *Service {
	return &Service{
		clients:  clients,
		meds:     meds,
		defaults: defaults,
		cache:    cache.Disabled(),
		cacheTTL: cache.TTLCandidates,
		logger:   logger.With().Str("component", "client").Logger(),
		now:      time.Now,
	}
}

// WithCandidateCache caches the search candidate list for ttl.
func (s *Service) WithCandidateCache(c *cache.Cache, ttl time.Duration) *Service {
	if c != nil {
		s.cache = c
	}
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

// -- Client --

func validateClient(c *Client) error {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	if c.FirstName == "" || c.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return fmt.Errorf("email %q is not valid", c.Email)
	}
	return nil
}

func (s *Service) CreateClient(ctx context.Context, c *Client) error {
	if err := validateClient(c); err != nil {
		return err
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return err
	}
	s.invalidateCandidates(ctx)
	return nil
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.clients.GetByID(ctx, id)
}

func (s *Service) UpdateClient(ctx context.Context, c *Client) error {
	if err := validateClient(c); err != nil {
		return err
	}
	if err := s.clients.Update(ctx, c); err != nil {
		return err
	}
	s.invalidateCandidates(ctx)
	return nil
}

func (s *Service) ListClients(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	return s.clients.List(ctx, limit, offset)
}

// SearchClients ranks every client against query. Short queries return the
// most recently updated clients.
func (s *Service) SearchClients(ctx context.Context, query string, limit int) ([]search.PersonRecord, error) {
	records, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	results := search.Search(records, query, limit)
	if results == nil {
		results = []search.PersonRecord{}
	}
	return results, nil
}

func (s *Service) candidates(ctx context.Context) ([]search.PersonRecord, error) {
	var records []search.PersonRecord
	err := s.cache.Get(ctx, candidatesKey, &records)
	if err == nil {
		return records, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Msg("candidate cache read failed")
	}

	clients, err := s.clients.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list search candidates: %w", err)
	}
	records = make([]search.PersonRecord, len(clients))
	for i, c := range clients {
		records[i] = c.ToPersonRecord()
	}
	if err := s.cache.Set(ctx, candidatesKey, records, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("candidate cache write failed")
	}
	return records, nil
}

func (s *Service) invalidateCandidates(ctx context.Context) {
	if err := s.cache.Delete(ctx, candidatesKey); err != nil {
		s.logger.Warn().Err(err).Msg("candidate cache invalidation failed")
	}
}

// -- Medication --

func validStatus(status string) bool {
	return status == MedicationActive || status == MedicationDiscontinued
}

// applyDefaults fills detected_as from the formulary when the caller left it
// unset. An explicitly empty set means the medication shows up as nothing.
func (s *Service) applyDefaults(m *Medication) error {
	if m.DetectedAs != nil {
		return nil
	}
	if s.defaults != nil {
		if entry, ok := s.defaults.Lookup(m.Name); ok {
			// Copy so the medication never aliases the shared catalog.
			m.DetectedAs = screening.NewSubstanceSet(entry.Substances.Sorted()...)
			m.RequireConfirmation = m.RequireConfirmation || entry.RequireConfirmation
			return nil
		}
	}
	return fmt.Errorf("detected_as is required: %q is not in the formulary", m.Name)
}

func (s *Service) AddMedication(ctx context.Context, m *Medication) error {
	if m.ClientID == uuid.Nil {
		return fmt.Errorf("client_id is required")
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := s.clients.GetByID(ctx, m.ClientID); err != nil {
		return fmt.Errorf("client %s: %w", m.ClientID, err)
	}
	if err := s.applyDefaults(m); err != nil {
		return err
	}
	if m.StartDate.IsZero() {
		m.StartDate = s.now().UTC().Truncate(24 * time.Hour)
	}
	m.Status = MedicationActive
	m.EndDate = nil
	return s.meds.Create(ctx, m)
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.meds.GetByID(ctx, id)
}

// UpdateMedication edits an active medication. Status and owner cannot change
// here; unset detected_as keeps the stored value.
func (s *Service) UpdateMedication(ctx context.Context, m *Medication) error {
	existing, err := s.meds.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	if !existing.IsActive() {
		return ErrDiscontinued
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.DetectedAs == nil {
		m.DetectedAs = existing.DetectedAs
	}
	if m.StartDate.IsZero() {
		m.StartDate = existing.StartDate
	}
	m.ClientID = existing.ClientID
	m.Status = existing.Status
	m.EndDate = existing.EndDate
	m.CreatedAt = existing.CreatedAt
	return s.meds.Update(ctx, m)
}

// DiscontinueMedication ends an active medication on endDate, or today.
func (s *Service) DiscontinueMedication(ctx context.Context, id uuid.UUID, endDate *time.Time) (*Medication, error) {
	m, err := s.meds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsActive() {
		return nil, ErrDiscontinued
	}
	end := s.now().UTC()
	if endDate != nil {
		end = *endDate
	}
	if end.Before(m.StartDate) {
		return nil, fmt.Errorf("end_date %s is before start_date %s", end.Format(time.DateOnly), m.StartDate.Format(time.DateOnly))
	}
	m.Status = MedicationDiscontinued
	m.EndDate = &end
	if err := s.meds.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMedications(ctx context.Context, clientID uuid.UUID, status string) ([]*Medication, error) {
	if status != "" && !validStatus(status) {
		return nil, fmt.Errorf("status must be %q or %q", MedicationActive, MedicationDiscontinued)
	}
	return s.meds.ListByClient(ctx, clientID, status)
}

// ActiveMedications is the medication list a screen is classified against.
func (s *Service) ActiveMedications(ctx context.Context, clientID uuid.UUID) ([]*Medication, error) {
	return s.meds.ListByClient(ctx, clientID, MedicationActive)
}
