package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	audit "kinerja/pkg/platform/audit"
)

// InMemoryStore keeps audit events per institution. Used by unit tests and
// single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[uuid.UUID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.InstitutionID] = append(s.events[event.InstitutionID], event)
	return nil
}

func (s *InMemoryStore) ListByInstitution(_ context.Context, institutionID uuid.UUID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[institutionID]...), nil
}

func (s *InMemoryStore) CountByInstitutionPeriod(_ context.Context, institutionID uuid.UUID, period string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.events[institutionID] {
		if event.Period == period {
			count++
		}
	}
	return count, nil
}
