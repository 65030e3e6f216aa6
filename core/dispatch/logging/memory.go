package logging

import (
	"context"
	"sync"
)

// MemoryStore keeps records in memory. It is used when no audit backend is
// configured.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []LogRecord
	max  int
}

// NewMemoryStore keeps at most max records; zero means unbounded.
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{max: max}
}

func (s *MemoryStore) Append(_ context.Context, rec LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	if s.max > 0 && len(s.recs) > s.max {
		s.recs = append([]LogRecord(nil), s.recs[len(s.recs)-s.max:]...)
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q LogQuery) ([]LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []LogRecord
	for _, r := range s.recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return finish(res, q), nil
}

func (s *MemoryStore) Close() error { return nil }
