package events

import "sync"

// Registry maps job IDs to their streams. Streams are dropped once they are
// closed and have no remaining subscribers.
type Registry struct {
	mu       sync.Mutex
	streams  map[string]*Stream
	capacity int
}

// NewRegistry creates an empty registry whose streams buffer up to capacity
// events each.
func NewRegistry(capacity int) *Registry {
	return &Registry{streams: make(map[string]*Stream), capacity: capacity}
}

// Open returns the stream for jobID, creating it when absent.
func (r *Registry) Open(jobID string) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.streams[jobID]; ok {
		return s
	}
	s := NewStream(jobID, r.capacity)
	s.onIdle = func() { r.drop(jobID, s) }
	r.streams[jobID] = s
	return s
}

// Get returns the live stream for jobID.
func (r *Registry) Get(jobID string) (*Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[jobID]
	return s, ok
}

// Len reports how many streams are tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

func (r *Registry) drop(jobID string, s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.streams[jobID]; ok && current == s {
		delete(r.streams, jobID)
	}
}
