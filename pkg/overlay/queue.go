package overlay

import "time"

// pendingItem is a mounted, measured message waiting for lane capacity.
type pendingItem struct {
	msg         Message
	rendered    RenderedMessage
	nextAttempt time.Time
}

// pendingQueue is a FIFO of pending items. Insertion order is preserved;
// the scheduler may skip over blocked items within its lookahead window but
// never reorders them.
type pendingQueue struct {
	items []*pendingItem
}

func (q *pendingQueue) push(it *pendingItem) {
	q.items = append(q.items, it)
}

func (q *pendingQueue) len() int { return len(q.items) }

func (q *pendingQueue) at(i int) *pendingItem { return q.items[i] }

// removeAt deletes the item at index i, preserving order. The vacated slot is
// zeroed so the backing array does not retain the rendered message.
func (q *pendingQueue) removeAt(i int) {
	copy(q.items[i:], q.items[i+1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
}

// drain empties the queue and returns the removed items so the caller can
// release their rendered representations.
func (q *pendingQueue) drain() []*pendingItem {
	items := q.items
	q.items = nil
	return items
}
