package consent

import (
	"context"
	"sync"
)

// MemoryStore is an in-process append-only log for tests and development
// mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records = append(s.records, &clone)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Record
	for _, rec := range s.records {
		if rec.UserID == userID {
			clone := *rec
			res = append(res, &clone)
		}
	}
	return res, nil
}
