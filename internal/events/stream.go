package events

import (
	"context"
	"io"
	"sync"
	"time"
)

// Type names a progress event.
type Type string

const (
	TypeAttemptStarted Type = "attempt_started"
	TypeAttemptInvalid Type = "attempt_invalid"
	TypeCompleted      Type = "completed"
	TypeFailed         Type = "failed"
)

// Terminal reports whether no further events follow this type.
func (t Type) Terminal() bool {
	return t == TypeCompleted || t == TypeFailed
}

// Event is one progress notification for a storyboard job.
type Event struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"ts"`
	JobID   string    `json:"job_id,omitempty"`
	Type    Type      `json:"type"`
	Attempt int       `json:"attempt,omitempty"`
	Message string    `json:"message,omitempty"`
	Errors  []string  `json:"errors,omitempty"`
}

// Publisher receives progress events. A nil Publisher is valid for callers
// that do not track progress; use Publish to send through one safely.
type Publisher interface {
	Publish(Event)
}

// Publish forwards evt when p is non-nil.
func Publish(p Publisher, evt Event) {
	if p != nil {
		p.Publish(evt)
	}
}

const defaultCapacity = 256

// Stream stores recent events for one job and wakes subscribers when new
// events arrive.
type Stream struct {
	jobID string

	mu          sync.Mutex
	cond        *sync.Cond
	capacity    int
	buffer      []Event
	nextSeq     uint64
	closed      bool
	subscribers int
	onIdle      func()
}

// NewStream constructs a bounded in-memory event buffer for jobID.
func NewStream(jobID string, capacity int) *Stream {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	s := &Stream{jobID: jobID, capacity: capacity}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// JobID returns the job this stream belongs to.
func (s *Stream) JobID() string {
	return s.jobID
}

// Publish appends evt, stamping its sequence, time, and job ID. Events
// published after Close are dropped. A terminal event closes the stream.
func (s *Stream) Publish(evt Event) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.nextSeq++
	evt.Seq = s.nextSeq
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	if evt.JobID == "" {
		evt.JobID = s.jobID
	}
	if len(evt.Errors) > 0 {
		evt.Errors = append([]string(nil), evt.Errors...)
	}

	if len(s.buffer) == s.capacity {
		copy(s.buffer, s.buffer[1:])
		s.buffer = s.buffer[:s.capacity-1]
	}
	s.buffer = append(s.buffer, evt)
	terminal := evt.Type.Terminal()
	if terminal {
		s.closed = true
	}
	s.cond.Broadcast()
	idle := s.idleLocked()
	s.mu.Unlock()

	if terminal && idle != nil {
		idle()
	}
}

// Close marks the stream finished. Subscribers drain the buffer and then
// receive io.EOF.
func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	idle := s.idleLocked()
	s.mu.Unlock()
	if idle != nil {
		idle()
	}
}

// Closed reports whether the stream has finished.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Snapshot returns every buffered event.
func (s *Stream) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// Fetch returns up to limit events with sequence greater than since. When
// wait is true, Fetch blocks until at least one event is available, the
// stream is closed, or the context ends. A closed, drained stream returns
// io.EOF.
func (s *Stream) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, error) {
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		events := s.snapshotLocked(since, limit)
		if len(events) > 0 {
			return events, nil
		}
		if s.closed {
			return nil, io.EOF
		}
		if !wait {
			return nil, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, err
		}
		s.cond.Wait()
	}
}

func (s *Stream) snapshotLocked(since uint64, limit int) []Event {
	start := len(s.buffer)
	for i, evt := range s.buffer {
		if evt.Seq > since {
			start = i
			break
		}
	}
	if start == len(s.buffer) {
		return nil
	}
	end := min(start+limit, len(s.buffer))
	out := make([]Event, end-start)
	copy(out, s.buffer[start:end])
	return out
}

func (s *Stream) idleLocked() func() {
	if s.closed && s.subscribers == 0 {
		return s.onIdle
	}
	return nil
}

// Subscribe returns a cursor over the stream starting at the oldest
// buffered event. Callers must Close the subscription when the consumer
// goes away.
func (s *Stream) Subscribe() *Subscription {
	s.mu.Lock()
	s.subscribers++
	s.mu.Unlock()
	return &Subscription{stream: s}
}

func (s *Stream) unsubscribe() {
	s.mu.Lock()
	s.subscribers--
	idle := s.idleLocked()
	s.mu.Unlock()
	if idle != nil {
		idle()
	}
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// Subscription reads a stream in order. It is not safe for concurrent use.
type Subscription struct {
	stream  *Stream
	cursor  uint64
	pending []Event
	once    sync.Once
}

// Next blocks until the next event is available. It returns io.EOF once the
// stream is closed and every buffered event has been delivered.
func (sub *Subscription) Next(ctx context.Context) (Event, error) {
	if len(sub.pending) == 0 {
		events, err := sub.stream.Fetch(ctx, sub.cursor, 0, true)
		if err != nil {
			return Event{}, err
		}
		sub.pending = events
	}
	evt := sub.pending[0]
	sub.pending = sub.pending[1:]
	sub.cursor = evt.Seq
	return evt, nil
}

// Close releases the subscription. It is safe to call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(sub.stream.unsubscribe)
}
