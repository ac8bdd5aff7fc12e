package session

import (
	"context"
	"sync"
	"time"

	"preciobot/internal"
)

type memoryEntry struct {
	mu      sync.Mutex
	pending *Pending
}

// MemoryStore keeps offers in process. Each identity has its own lock, so
// traffic from different users never contends.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	idle    time.Duration
	now     func() time.Time
}

// NewMemoryStore returns a store whose offers expire after idle; zero keeps
// them until answered or replaced.
func NewMemoryStore(idle time.Duration) *MemoryStore {
	return &MemoryStore{entries: map[string]*memoryEntry{}, idle: idle, now: time.Now}
}

func (s *MemoryStore) entry(identity string) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[identity]
}

func (s *MemoryStore) expired(p *Pending) bool {
	return s.idle > 0 && s.now().Sub(p.OfferedAt) > s.idle
}

func (s *MemoryStore) Offer(_ context.Context, identity string, plan internal.FinancingPlan, candidates []internal.CatalogRecord) (Pending, error) {
	p := NewPending(plan, candidates, s.now())

	// Held across the entry update so Sweep cannot drop the entry in between.
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[identity]
	if !ok {
		e = &memoryEntry{}
		s.entries[identity] = e
	}
	e.mu.Lock()
	e.pending = &p
	e.mu.Unlock()
	return p, nil
}

func (s *MemoryStore) Resolve(_ context.Context, identity, token string) (Selection, bool, error) {
	key, ok := ChoiceKey(token)
	if !ok {
		return Selection{}, false, nil
	}
	e := s.entry(identity)
	if e == nil {
		return Selection{}, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return Selection{}, false, nil
	}
	if s.expired(e.pending) {
		e.pending = nil
		return Selection{}, false, nil
	}
	record, ok := e.pending.Options[key]
	if !ok {
		return Selection{}, false, nil
	}
	sel := Selection{Plan: e.pending.Plan, Record: record}
	e.pending = nil
	return sel, true, nil
}

func (s *MemoryStore) Clear(_ context.Context, identity string) error {
	if e := s.entry(identity); e != nil {
		e.mu.Lock()
		e.pending = nil
		e.mu.Unlock()
	}
	return nil
}

// Sweep drops consumed and expired entries and reports how many went.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for identity, e := range s.entries {
		e.mu.Lock()
		if e.pending == nil || s.expired(e.pending) {
			delete(s.entries, identity)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Len reports the identities currently tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor sweeps every interval until ctx ends.
func (s *MemoryStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}
