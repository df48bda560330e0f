// Package resident stores resident records keyed by person id with an area
// code index.
package resident

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"screening/internal/targeting/models"
	"screening/pkg/platform/sentinel"
)

// InMemoryStore keeps residents in memory. Reads return copies.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]models.ResidentRecord
	byArea map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[string]models.ResidentRecord),
		byArea: make(map[string][]string),
	}
}

// Put inserts or replaces residents. A resident's area code never changes.
func (s *InMemoryStore) Put(_ context.Context, records ...models.ResidentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if existing, ok := s.byID[r.PersonID]; ok && existing.AreaCode != r.AreaCode {
			return fmt.Errorf("resident %s already belongs to area %s: %w", r.PersonID, existing.AreaCode, sentinel.ErrConflict)
		}
		if _, ok := s.byID[r.PersonID]; !ok {
			s.byArea[r.AreaCode] = append(s.byArea[r.AreaCode], r.PersonID)
		}
		s.byID[r.PersonID] = r
	}
	return nil
}

func (s *InMemoryStore) ListByAreaCode(ctx context.Context, areaCode string) ([]models.ResidentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byArea[areaCode]
	out := make([]models.ResidentRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

// MarkIdentified sets identified_to_be_invited. The first batch id wins.
func (s *InMemoryStore) MarkIdentified(ctx context.Context, personID, areaCode, batchID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[personID]
	if !ok || r.AreaCode != areaCode {
		return fmt.Errorf("resident %s in area %s: %w", personID, areaCode, sentinel.ErrNotFound)
	}
	if !r.IdentifiedToBeInvited {
		r.IdentifiedToBeInvited = true
		b := batchID
		r.BatchID = &b
	}
	s.byID[personID] = r
	return nil
}

// Get returns one resident.
func (s *InMemoryStore) Get(_ context.Context, personID string) (models.ResidentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[personID]
	if !ok {
		return models.ResidentRecord{}, sentinel.ErrNotFound
	}
	return r, nil
}
