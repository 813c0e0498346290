package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Store is the swappable counter backend behind the limiter. The in-memory
// implementation below suits a single instance; a shared cache can implement
// the same interface for multi-instance deployments.
type Store interface {
	// Allow records a hit for key and reports whether it stays within limit
	// for the current window.
	Allow(key string) bool
}

type entry struct {
	count int
	reset time.Time
}

type memoryStore struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu    sync.Mutex
	items map[string]entry
}

// NewMemoryStore builds a fixed-window in-memory counter store. A nil clock
// defaults to time.Now.
func NewMemoryStore(limit int, window time.Duration, clock func() time.Time) Store {
	if clock == nil {
		clock = time.Now
	}
	return &memoryStore{
		limit:  limit,
		window: window,
		clock:  clock,
		items:  make(map[string]entry),
	}
}

func (s *memoryStore) Allow(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || now.After(e.reset) {
		s.items[key] = entry{count: 1, reset: now.Add(s.window)}
		s.pruneLocked(now)
		return true
	}

	if e.count >= s.limit {
		return false
	}

	e.count++
	s.items[key] = e
	return true
}

func (s *memoryStore) pruneLocked(now time.Time) {
	for key, e := range s.items {
		if now.After(e.reset) {
			delete(s.items, key)
		}
	}
}
