package engine

import (
	"sync"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// pending is one queued transaction.
type pending struct {
	req  *rdm.Request
	cb   *continuation
	slot slotKind
}

// transactionQueue is an unbounded FIFO of pending transactions. Any
// goroutine may push; only the worker peeks and pops. The discovery slots
// share its mutex so admission can check a slot and enqueue atomically.
type transactionQueue struct {
	mu     sync.Mutex
	items  []*pending
	slots  discoverySlots
	nextTN uint8
	closed bool
}

func newTransactionQueue() *transactionQueue {
	return &transactionQueue{}
}

// push appends a request with its own callback. It returns false once the
// queue is closed; the caller then owns resolving cb.
func (q *transactionQueue) push(req *rdm.Request, cb *continuation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.enqueueLocked(&pending{req: req, cb: cb})
	return true
}

// admit fills an empty discovery slot and enqueues its request in one step.
func (q *transactionQueue) admit(kind slotKind, req *rdm.Request, cont *continuation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || !q.slots.fill(kind, cont) {
		return false
	}
	q.enqueueLocked(&pending{req: req, slot: kind})
	return true
}

func (q *transactionQueue) enqueueLocked(p *pending) {
	p.req.TransactionNumber = q.nextTN
	q.nextTN++
	q.items = append(q.items, p)
}

// peek returns the head without removing it.
func (q *transactionQueue) peek() *pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// pop removes the head.
func (q *transactionQueue) pop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return
	}
	q.items[0] = nil
	q.items = q.items[1:]
}

// takeSlot clears a discovery slot and returns its continuation.
func (q *transactionQueue) takeSlot(kind slotKind) *continuation {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.slots.clear(kind)
}

// slotOccupied reports whether a discovery slot is busy.
func (q *transactionQueue) slotOccupied(kind slotKind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.slots.occupied(kind)
}

// close refuses further pushes and returns everything still queued, oldest
// first.
func (q *transactionQueue) close() []*pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	items := q.items
	q.items = nil
	return items
}

func (q *transactionQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
