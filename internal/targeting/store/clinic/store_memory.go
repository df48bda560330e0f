// Package clinic stores clinic state.
package clinic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"screening/internal/targeting/models"
	"screening/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	clinics map[string]models.Clinic
	batches map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clinics: make(map[string]models.Clinic),
		batches: make(map[string]struct{}),
	}
}

func (s *InMemoryStore) Put(_ context.Context, clinics ...models.Clinic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range clinics {
		s.clinics[c.ID] = c
	}
	return nil
}

// Get finds a clinic by id. A non-empty name must also match.
func (s *InMemoryStore) Get(_ context.Context, clinicID, clinicName string) (*models.Clinic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clinics[clinicID]
	if !ok || (clinicName != "" && !strings.EqualFold(c.Name, clinicName)) {
		return nil, fmt.Errorf("clinic %s: %w", clinicID, sentinel.ErrNotFound)
	}
	return &c, nil
}

// UpdateAfterInvite records a committed batch against the clinic. A batch
// id seen before does not add to InvitesSent again.
func (s *InMemoryStore) UpdateAfterInvite(ctx context.Context, clinicID, clinicName string, fields models.ClinicInviteFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clinics[clinicID]
	if !ok || (clinicName != "" && !strings.EqualFold(c.Name, clinicName)) {
		return fmt.Errorf("clinic %s: %w", clinicID, sentinel.ErrNotFound)
	}
	c.TargetFillPercentage = fields.TargetFillPercentage
	c.LastSelectedRange = fields.LastSelectedRange
	if _, seen := s.batches[fields.BatchID]; !seen || fields.BatchID == "" {
		c.InvitesSent += fields.InvitesSent
	}
	if fields.BatchID != "" {
		s.batches[fields.BatchID] = struct{}{}
	}
	prev := fields.PrevInviteDate
	c.PrevInviteDate = &prev
	c.Availability = fields.Availability
	s.clinics[clinicID] = c
	return nil
}
