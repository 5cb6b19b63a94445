package emitter

import (
	"sync"
)

// defaultRecentCap bounds the rolling list kept for the dashboard.
const defaultRecentCap = 200

// Store is an in-memory sink backing the dashboard API: a rolling list
// of recent events plus cumulative counts per event name.
type Store struct {
	mu        sync.RWMutex
	recentCap int
	recent    []*Event
	counts    map[string]int
	total     int
}

func NewStore() *Store {
	return &Store{
		recentCap: defaultRecentCap,
		counts:    make(map[string]int),
	}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Write(e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, e)
	if len(s.recent) > s.recentCap {
		s.recent = s.recent[len(s.recent)-s.recentCap:]
	}
	s.counts[e.Payload.EventName()]++
	s.total++
	return nil
}

func (s *Store) Close() error { return nil }

// Recent returns the most recent events, newest first.
func (s *Store) Recent(limit int) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]*Event, 0, limit)
	for i := len(s.recent) - 1; i >= len(s.recent)-limit; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

// Counts returns a copy of the cumulative per-name event counts.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Total returns the number of events stored over the process lifetime.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
