package quota

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count     int
	expiresAt time.Time
}

// MemoryStore is the in-process fallback backend. Counters are local to a
// single replica and are lost on restart. Expiry is enforced explicitly so
// a key created yesterday never leaks into today's window.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Peek(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return 0, nil
	}
	if !s.now().Before(rec.expiresAt) {
		delete(s.records, key)
		return 0, nil
	}
	return rec.count, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || !now.Before(rec.expiresAt) {
		rec = &record{expiresAt: now.Add(ttl)}
		s.records[key] = rec
	}
	rec.count++
	return rec.count, nil
}

// Reset drops all counters. Called when the primary backend recovers so a
// later degradation starts from a clean window.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*record)
}
