package link

import (
	"time"
)

// DefaultQueueCapacity is the number of replies that can be pending.
const DefaultQueueCapacity = 10

// Handler is called with the payload of the reply paired with a request.
// The payload is only valid during the call, copy it to keep it.
type Handler interface {
	HandleLine(payload []byte)
}

// HandleLineFunc is func type of Handler.
type HandleLineFunc func(payload []byte)

// HandleLine implements Handler.
func (f HandleLineFunc) HandleLine(payload []byte) {
	f(payload)
}

// ExpiryNotifier is optionally implemented by a Handler which wants to
// know it will never be called: it timed out, or the queue was full.
type ExpiryNotifier interface {
	Expired()
}

type pendingCallback struct {
	handler    Handler
	attachedAt time.Time
}

// CallbackQueue is a fixed-capacity ring of pending handlers,
// dequeued strictly in the order they were attached.
type CallbackQueue struct {
	slots   []pendingCallback
	head    int
	count   int
	timeout time.Duration
}

// NewCallbackQueue creates a CallbackQueue.
func NewCallbackQueue(capacity int, timeout time.Duration) *CallbackQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &CallbackQueue{
		slots:   make([]pendingCallback, capacity),
		timeout: timeout,
	}
}

// Len returns the number of pending handlers, including expired ones
// not yet evicted.
func (q *CallbackQueue) Len() int {
	return q.count
}

// Cap returns the capacity.
func (q *CallbackQueue) Cap() int {
	return len(q.slots)
}

// Timeout returns the time a handler waits for its reply.
func (q *CallbackQueue) Timeout() time.Duration {
	return q.timeout
}

// SetTimeout changes the timeout, pending handlers included.
func (q *CallbackQueue) SetTimeout(timeout time.Duration) {
	q.timeout = timeout
}

// Attach queues a handler stamped with now. At most one expired handler
// (the oldest) is evicted first. When the queue is still full, the
// handler is dropped with ErrQueueFull.
func (q *CallbackQueue) Attach(h Handler, now time.Time) (evicted bool, err error) {
	if q.count > 0 && q.expired(q.slots[q.head], now) {
		q.notifyExpired(q.pop())
		evicted = true
	}
	if q.count >= len(q.slots) {
		return evicted, ErrQueueFull
	}
	q.slots[(q.head+q.count)%len(q.slots)] = pendingCallback{handler: h, attachedAt: now}
	q.count++
	return evicted, nil
}

// Dispatch delivers payload to the oldest handler which hasn't expired,
// discarding expired ones on the way. At most one handler is called.
// It is removed before being called, so it may attach new handlers.
func (q *CallbackQueue) Dispatch(payload []byte, now time.Time) (delivered bool, expired int) {
	for q.count > 0 {
		cb := q.pop()
		if q.expired(cb, now) {
			q.notifyExpired(cb)
			expired++
			continue
		}
		cb.handler.HandleLine(payload)
		return true, expired
	}
	return false, expired
}

// Purge evicts all expired handlers from the head of the queue.
func (q *CallbackQueue) Purge(now time.Time) (expired int) {
	for q.count > 0 && q.expired(q.slots[q.head], now) {
		q.notifyExpired(q.pop())
		expired++
	}
	return
}

func (q *CallbackQueue) expired(cb pendingCallback, now time.Time) bool {
	return now.Sub(cb.attachedAt) > q.timeout
}

// pop removes the oldest entry, shared by eviction and dispatching.
func (q *CallbackQueue) pop() pendingCallback {
	cb := q.slots[q.head]
	q.slots[q.head] = pendingCallback{}
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	return cb
}

func (q *CallbackQueue) notifyExpired(cb pendingCallback) {
	if n, ok := cb.handler.(ExpiryNotifier); ok {
		n.Expired()
	}
}
