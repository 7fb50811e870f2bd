package indicator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"kinerja/internal/indicator/models"
	"kinerja/pkg/platform/sentinel"
)

// InMemoryStore keeps indicators in process memory. Used by unit tests and
// as the reference semantics for the postgres store.
type InMemoryStore struct {
	mu         sync.RWMutex
	indicators map[uuid.UUID]models.Indicator
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{indicators: make(map[uuid.UUID]models.Indicator)}
}

func (s *InMemoryStore) Create(_ context.Context, ind *models.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indicators[ind.ID]; exists {
		return sentinel.ErrConflict
	}
	s.indicators[ind.ID] = *ind
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, ind *models.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indicators[ind.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.indicators[ind.ID] = *ind
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ind, ok := s.indicators[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &ind, nil
}

func (s *InMemoryStore) ListByInstitution(_ context.Context, institutionID uuid.UUID) ([]models.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Indicator
	for _, ind := range s.indicators {
		if ind.InstitutionID == institutionID {
			out = append(out, ind)
		}
	}
	return out, nil
}
