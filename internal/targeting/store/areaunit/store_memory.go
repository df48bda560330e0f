// Package areaunit stores area unit reference data.
package areaunit

import (
	"context"
	"sort"
	"sync"

	"screening/internal/targeting/models"
)

const DefaultPageSize = 500

// InMemoryStore pages area units in code order. The continuation token is
// the last code of the previous page.
type InMemoryStore struct {
	mu       sync.RWMutex
	units    map[string]models.AreaUnit
	pageSize int
}

func NewInMemoryStore(pageSize int) *InMemoryStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &InMemoryStore{units: make(map[string]models.AreaUnit), pageSize: pageSize}
}

// Put inserts or replaces units by code.
func (s *InMemoryStore) Put(_ context.Context, units ...models.AreaUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range units {
		s.units[u.Code] = u
	}
	return nil
}

func (s *InMemoryStore) Page(_ context.Context, token string) ([]models.AreaUnit, string, error) {
	s.mu.RLock()
	codes := make([]string, 0, len(s.units))
	for code := range s.units {
		if code > token {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	if len(codes) > s.pageSize {
		codes = codes[:s.pageSize]
	}
	page := make([]models.AreaUnit, 0, len(codes))
	for _, code := range codes {
		page = append(page, s.units[code])
	}
	s.mu.RUnlock()

	if len(page) < s.pageSize {
		return page, "", nil
	}
	return page, page[len(page)-1].Code, nil
}
