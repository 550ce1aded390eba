package queue

import (
	"errors"
	"sync"
	"time"
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 3

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("queue full")

// Queue holds assembled requests in arrival order together with the worker's
// busy flag. Both are guarded by one mutex so claiming work is atomic with
// respect to enqueueing.
type Queue struct {
	mu       sync.Mutex
	items    []*Request
	capacity int
	busy     bool
	active   *Request
	now      func() time.Time
}

// New creates a queue bounded at capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{capacity: capacity, now: time.Now}
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Enqueue appends req and returns its 1-based position. The queue is left
// unchanged when full.
func (q *Queue) Enqueue(req *Request) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return 0, ErrQueueFull
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = q.now()
	}
	q.items = append(q.items, req)
	return len(q.items), nil
}

// Len returns the number of waiting requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TryClaim marks the worker busy and pops the head request. It returns false
// without side effects when the worker is already busy or nothing is queued.
func (q *Queue) TryClaim() (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.busy || len(q.items) == 0 {
		return nil, false
	}
	req := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.busy = true
	q.active = req
	return req, true
}

// Release clears the busy flag after the active request reached a terminal state.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy = false
	q.active = nil
}

// Busy reports whether a request is being processed.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Snapshot describes the queue state at one instant.
type Snapshot struct {
	Capacity int       `json:"capacity"`
	Busy     bool      `json:"busy"`
	Active   *Summary  `json:"active,omitempty"`
	Waiting  []Summary `json:"waiting"`
}

// Snapshot returns a copy of the current state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap := Snapshot{
		Capacity: q.capacity,
		Busy:     q.busy,
		Waiting:  make([]Summary, 0, len(q.items)),
	}
	if q.active != nil {
		active := q.active.summary(0)
		snap.Active = &active
	}
	for i, req := range q.items {
		snap.Waiting = append(snap.Waiting, req.summary(i+1))
	}
	return snap
}
