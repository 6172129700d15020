package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/madshubh27/Crotex/document"
)

// MemoryStore is a map-backed Store. The relay falls back to it when no
// durable backend is reachable at startup, so collaboration keeps working
// with in-process state only; it is also what the tests run against.
type MemoryStore struct {
	mu       sync.RWMutex
	drawings map[string]Drawing
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drawings: make(map[string]Drawing),
		now:      time.Now,
	}
}

func (s *MemoryStore) FindBySessionID(_ context.Context, sessionID string) (*Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drawings[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	d.Elements = d.Elements.Clone()
	return &d, nil
}

func (s *MemoryStore) Upsert(_ context.Context, sessionID string, elements document.Snapshot, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	d, ok := s.drawings[sessionID]
	if !ok {
		d = Drawing{SessionID: sessionID, Title: "Untitled Drawing", CreatedAt: now}
	}
	if owner != "" {
		d.Owner = owner
	}
	d.Elements = elements.Clone()
	d.UpdatedAt = now
	s.drawings[sessionID] = d
	return nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, owner string) ([]Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Drawing
	for _, d := range s.drawings {
		if d.Owner == owner {
			d.Elements = d.Elements.Clone()
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drawings[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.drawings, sessionID)
	return nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }
