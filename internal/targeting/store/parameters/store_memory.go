// Package parameters stores the global invitation parameters.
package parameters

import (
	"context"
	"sync"

	"screening/internal/targeting/models"
)

// Defaults seed a fresh store.
var Defaults = models.InvitationParameters{
	QuintileWeights:  [models.NumQuintiles]int{20, 20, 20, 20, 20},
	ForecastUptake:   50,
	TargetPercentage: 50,
}

type InMemoryStore struct {
	mu     sync.RWMutex
	params models.InvitationParameters
}

func NewInMemoryStore(initial models.InvitationParameters) *InMemoryStore {
	return &InMemoryStore{params: initial}
}

func (s *InMemoryStore) Get(_ context.Context) (models.InvitationParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params, nil
}

func (s *InMemoryStore) UpdateQuintiles(_ context.Context, weights [models.NumQuintiles]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.QuintileWeights = weights
	return nil
}

func (s *InMemoryStore) UpdateForecastUptake(_ context.Context, uptake float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.ForecastUptake = uptake
	return nil
}

func (s *InMemoryStore) UpdateTargetPercentage(_ context.Context, pct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.TargetPercentage = pct
	return nil
}
