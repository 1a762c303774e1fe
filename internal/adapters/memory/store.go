package memory

import (
	"context"
	"sync"

	"github.com/openfluidics/syrinx/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.RunRecord
	mu   sync.RWMutex
}

// New creates a new in-memory run store.
func New() *Store {
	return &Store{
		data: make(map[string]*domain.RunRecord),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, runID string, rec *domain.RunRecord) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := *rec
	copied.Measurements = append([]domain.Measurement(nil), rec.Measurements...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[runID] = &copied
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}

	// Create a copy on read so caller can't mutate store state directly by pointer
	ret := *rec
	ret.Measurements = append([]domain.Measurement(nil), rec.Measurements...)
	return &ret, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns known run IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.data))
	for id := range s.data {
		runs = append(runs, id)
	}
	return runs, nil
}
