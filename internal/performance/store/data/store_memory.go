package data

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"kinerja/internal/performance/models"
	"kinerja/pkg/domain"
	"kinerja/pkg/platform/sentinel"
)

// InMemoryStore keeps submissions in process memory. A validated record is
// immutable: Update refuses to touch it, mirroring the postgres trigger.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.PerformanceData
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]models.PerformanceData)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.PerformanceData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.ID] = *record
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.PerformanceData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[record.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Validated() {
		return sentinel.ErrImmutable
	}
	s.records[record.ID] = *record
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.PerformanceData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

// History returns validated submissions for the indicator from periods
// strictly before the given one, most recent first.
func (s *InMemoryStore) History(_ context.Context, indicatorID uuid.UUID, before domain.Period, limit int) ([]models.PerformanceData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PerformanceData
	for _, record := range s.records {
		if record.IndicatorID == indicatorID && record.Period < before && record.Validated() {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListByInstitutionPeriod(_ context.Context, institutionID uuid.UUID, period domain.Period) ([]models.PerformanceData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PerformanceData
	for _, record := range s.records {
		if record.InstitutionID == institutionID && record.Period == period {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// FlagForReview marks every submission of the indicator as requiring
// review and returns how many records were touched. Validated records are
// flagged too: the flag requests re-review, it does not mutate results.
func (s *InMemoryStore) FlagForReview(_ context.Context, indicatorID uuid.UUID, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, record := range s.records {
		if record.IndicatorID == indicatorID && !record.RequiresReview {
			record.RequiresReview = true
			s.records[id] = record
			count++
		}
	}
	return count, nil
}
