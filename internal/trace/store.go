package trace

import (
	"sync"
	"time"
)

const DefaultCapacity = 1000

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Message   string    `json:"message"`
}

// Store is a process-wide, bounded log of trace events. Events land in a
// single chronological tail; per-trace-id views are derived from it, so
// evicting the oldest tail entries bounds every view at once. It exists for
// observability only and is not persisted.
type Store struct {
	service  string
	capacity int

	mu     sync.Mutex
	events []Event
	byID   map[string][]int // trace id -> offsets into the logical tail
	offset int              // logical index of events[0]
}

func NewStore(service string, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		service:  service,
		capacity: capacity,
		byID:     make(map[string][]int),
	}
}

// Record appends an event. An empty traceID still lands in the global tail
// so Recent stays complete.
func (s *Store) Record(traceID, message string) {
	evt := Event{
		Timestamp: time.Now().UTC(),
		Service:   s.service,
		Message:   message,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, evt)
	if traceID != "" {
		s.byID[traceID] = append(s.byID[traceID], s.offset+len(s.events)-1)
	}
	if len(s.events) > s.capacity {
		evicted := len(s.events) - s.capacity
		s.events = append(s.events[:0], s.events[evicted:]...)
		s.offset += evicted
		s.dropEvicted()
	}
}

// dropEvicted prunes per-id offsets that fell off the tail. Caller holds mu.
func (s *Store) dropEvicted() {
	for id, idxs := range s.byID {
		keep := idxs
		for len(keep) > 0 && keep[0] < s.offset {
			keep = keep[1:]
		}
		if len(keep) == 0 {
			delete(s.byID, id)
			continue
		}
		s.byID[id] = keep
	}
}

// Recent returns up to n most recent events in chronological order.
func (s *Store) Recent(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]Event, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}

// ByID returns the events recorded under traceID in chronological order.
// An unknown id yields an empty slice, not an error.
func (s *Store) ByID(traceID string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	idxs := s.byID[traceID]
	out := make([]Event, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.events[i-s.offset])
	}
	return out
}
