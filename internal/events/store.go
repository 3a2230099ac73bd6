package events

import (
	"sort"
	"sync"

	"github.com/isdelr/schedpanel/internal/models"
)

// Store is the in-process bounded event log. Events are kept in ascending id order and are
// only ever removed from the oldest end.
type Store struct {
	mu     sync.RWMutex
	events []models.Event
}

// NewStore returns an empty store sized for capacity events.
func NewStore(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{events: make([]models.Event, 0, capacity+1)}
}

// Append inserts e keeping id order. An event whose id is already stored is ignored.
func (s *Store) Append(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(e)
}

// Ingest appends e and evicts down to max events, as one step for concurrent readers.
// It returns the number of events evicted.
func (s *Store) Ingest(e models.Event, max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(e)
	return s.evictOverCapacityLocked(max)
}

// EvictOverCapacity drops the oldest events until at most max remain.
func (s *Store) EvictOverCapacity(max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictOverCapacityLocked(max)
}

// EvictOlderThan drops events from the head while they are stamped at or before cutoff
// (Unix milliseconds).
func (s *Store) EvictOlderThan(cutoff int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for n < len(s.events) && s.events[n].Date <= cutoff {
		n++
	}
	s.dropHeadLocked(n)
	return n
}

// Snapshot returns a copy of the log. Later appends and evictions do not affect it.
func (s *Store) Snapshot() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) appendLocked(e models.Event) {
	n := len(s.events)
	if n == 0 || s.events[n-1].ID < e.ID {
		s.events = append(s.events, e)
		return
	}
	i := sort.Search(n, func(i int) bool { return s.events[i].ID >= e.ID })
	if s.events[i].ID == e.ID {
		return
	}
	s.events = append(s.events, models.Event{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = e
}

func (s *Store) evictOverCapacityLocked(max int) int {
	if max < 0 {
		max = 0
	}
	n := len(s.events) - max
	if n <= 0 {
		return 0
	}
	s.dropHeadLocked(n)
	return n
}

func (s *Store) dropHeadLocked(n int) {
	if n == 0 {
		return
	}
	clear(s.events[:n])
	s.events = s.events[n:]
}
