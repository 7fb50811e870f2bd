package evidence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"kinerja/internal/performance/models"
	"kinerja/pkg/platform/sentinel"
)

// InMemoryStore keeps evidence descriptors in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]models.EvidenceDocument
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[uuid.UUID]models.EvidenceDocument)}
}

func (s *InMemoryStore) Create(_ context.Context, doc *models.EvidenceDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, doc *models.EvidenceDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.EvidenceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &doc, nil
}

func (s *InMemoryStore) ListBySubmission(_ context.Context, submissionID uuid.UUID) ([]models.EvidenceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EvidenceDocument
	for _, doc := range s.docs {
		if doc.SubmissionID == submissionID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}
