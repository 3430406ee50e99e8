package task

import (
	"sync"
	"time"

	"github.com/postsharp/teamcity-azure-agent/throttle/id"
)

// Request is one pending invocation: parameters plus the settle callback
// that resolves the caller's result handle. Ownership transfers from the
// RequestQueue to the dispatching task queue when the head is taken.
type Request struct {
	ID         id.RequestID
	Params     any
	EnqueuedAt time.Time

	settle func(value any, err error)
}

// NewRequest creates a request with a fresh ID. settle forwards the
// outcome to the caller's handle; the handle itself guarantees
// single-assignment, so Settle may safely race a timeout.
func NewRequest(params any, settle func(value any, err error)) *Request {
	return &Request{
		ID:         id.NewRequestID(),
		Params:     params,
		EnqueuedAt: time.Now().UTC(),
		settle:     settle,
	}
}

// Settle resolves the request's result handle with the given outcome.
func (r *Request) Settle(value any, err error) {
	r.settle(value, err)
}

// RequestQueue is a strict FIFO of pending requests for one task type.
// Many caller goroutines enqueue concurrently; only the owning task queue
// consumes the head, one request per dispatch.
type RequestQueue struct {
	mu       sync.Mutex
	requests []*Request
}

// NewRequestQueue creates an empty queue.
func NewRequestQueue() *RequestQueue {
	return &RequestQueue{}
}

// Enqueue appends a request to the tail.
func (q *RequestQueue) Enqueue(r *Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = append(q.requests, r)
}

// TakeHead removes and returns the oldest pending request.
// Returns false if the queue is empty.
func (q *RequestQueue) TakeHead() (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil, false
	}
	head := q.requests[0]
	q.requests[0] = nil // release the reference
	q.requests = q.requests[1:]
	return head, true
}

// Len returns the number of pending requests.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}
