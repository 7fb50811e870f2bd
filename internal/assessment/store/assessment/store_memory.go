package assessment

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"kinerja/internal/assessment/models"
	"kinerja/pkg/domain"
	"kinerja/pkg/platform/sentinel"
)

// InMemoryStore keeps assessments and their criteria in process memory.
// The active-scope invariant is enforced under the store lock, mirroring
// the partial unique index the postgres store relies on.
type InMemoryStore struct {
	mu          sync.RWMutex
	assessments map[uuid.UUID]models.Assessment
	criteria    map[uuid.UUID][]models.Criterion
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		assessments: make(map[uuid.UUID]models.Assessment),
		criteria:    make(map[uuid.UUID][]models.Criterion),
	}
}

// CreateIfScopeAvailable atomically claims the (institution, period) scope:
// creation fails while another active assessment occupies it.
func (s *InMemoryStore) CreateIfScopeAvailable(_ context.Context, a *models.Assessment, criteria []models.Criterion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assessments {
		if existing.InstitutionID == a.InstitutionID && existing.Period == a.Period && existing.Status.Active() {
			return sentinel.ErrConflict
		}
	}
	s.assessments[a.ID] = *a
	s.criteria[a.ID] = append([]models.Criterion(nil), criteria...)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, a *models.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.assessments[a.ID] = *a
	return nil
}

// UpdateCriteria replaces the assessment's criterion scores.
func (s *InMemoryStore) UpdateCriteria(_ context.Context, assessmentID uuid.UUID, criteria []models.Criterion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[assessmentID]; !ok {
		return sentinel.ErrNotFound
	}
	s.criteria[assessmentID] = append([]models.Criterion(nil), criteria...)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assessments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

func (s *InMemoryStore) Criteria(_ context.Context, assessmentID uuid.UUID) ([]models.Criterion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.assessments[assessmentID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.Criterion(nil), s.criteria[assessmentID]...), nil
}

func (s *InMemoryStore) ListByInstitutionPeriod(_ context.Context, institutionID uuid.UUID, period domain.Period) ([]models.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Assessment
	for _, a := range s.assessments {
		if a.InstitutionID == institutionID && a.Period == period {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Delete removes an assessment and its criteria. Callers gate on
// Assessment.Deletable; the store only checks existence.
func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.assessments, id)
	delete(s.criteria, id)
	return nil
}
