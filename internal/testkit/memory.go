package testkit

import (
	"context"
	"sync"

	"gomediate/domain/core"
	"gomediate/domain/mediation"
	"gomediate/ports"
)

// InMemoryStudyStore implements StudyStore with in-memory storage
type InMemoryStudyStore struct {
	studies map[core.StudyID]*mediation.Study
	order   []core.StudyID
	mu      sync.RWMutex
}

// NewInMemoryStudyStore creates an empty in-memory study store
func NewInMemoryStudyStore() *InMemoryStudyStore {
	return &InMemoryStudyStore{
		studies: make(map[core.StudyID]*mediation.Study),
	}
}

// SaveStudy stores a study, replacing any previous version with the
// same ID. Insertion order is kept for listing.
func (s *InMemoryStudyStore) SaveStudy(ctx context.Context, study *mediation.Study) error {
	if study == nil {
		return core.ErrEmptyData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.studies[study.ID]; !exists {
		s.order = append(s.order, study.ID)
	}
	s.studies[study.ID] = study
	return nil
}

// GetStudy returns the study with the given ID.
func (s *InMemoryStudyStore) GetStudy(ctx context.Context, id core.StudyID) (*mediation.Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	study, exists := s.studies[id]
	if !exists {
		return nil, core.ErrStudyNotFound
	}
	return study, nil
}

// ListStudies returns summaries newest-first with limit/offset paging.
func (s *InMemoryStudyStore) ListStudies(ctx context.Context, limit, offset int) ([]ports.StudySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]ports.StudySummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		study := s.studies[s.order[i]]
		summaries = append(summaries, ports.StudySummary{
			ID:          study.ID,
			Kind:        study.Kind,
			DatasetName: study.DatasetName,
			CreatedAt:   study.CreatedAt,
		})
	}

	if offset > 0 {
		if offset >= len(summaries) {
			return []ports.StudySummary{}, nil
		}
		summaries = summaries[offset:]
	}
	if limit > 0 && limit < len(summaries) {
		summaries = summaries[:limit]
	}
	return summaries, nil
}
