package target

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"kinerja/internal/indicator/models"
	"kinerja/pkg/domain"
	"kinerja/pkg/platform/sentinel"
)

// InMemoryStore keeps targets in process memory. CreateIfScopeAvailable is
// the only creation path, mirroring the unique (indicator_id, period)
// constraint of the postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	targets map[uuid.UUID]models.Target
	byScope map[scopeKey]uuid.UUID
}

type scopeKey struct {
	indicatorID uuid.UUID
	period      domain.Period
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		targets: make(map[uuid.UUID]models.Target),
		byScope: make(map[scopeKey]uuid.UUID),
	}
}

// CreateIfScopeAvailable atomically checks and claims the (indicator,
// period) scope. Exactly one target may occupy a scope.
func (s *InMemoryStore) CreateIfScopeAvailable(_ context.Context, t *models.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeKey{indicatorID: t.IndicatorID, period: t.Period}
	if _, taken := s.byScope[key]; taken {
		return sentinel.ErrConflict
	}
	s.targets[t.ID] = *t
	s.byScope[key] = t.ID
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, t *models.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.targets[t.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.targets[t.ID] = *t
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *InMemoryStore) FindByScope(_ context.Context, indicatorID uuid.UUID, period domain.Period) (*models.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byScope[scopeKey{indicatorID: indicatorID, period: period}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	t := s.targets[id]
	return &t, nil
}
