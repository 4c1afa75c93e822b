package ai

import "time"

// ActionQueue is the FIFO of actions waiting for playback.
// It is not safe for concurrent use; Brain guards it with its mutex.
//
// Invariant: Len() <= max after every Push and Trim.
type ActionQueue struct {
	max   int
	items []Action
}

// NewActionQueue returns an empty queue bounded to max entries.
//
// Precondition: max >= 1.
func NewActionQueue(max int) *ActionQueue {
	if max < 1 {
		panic("ai.NewActionQueue: max must be >= 1")
	}
	return &ActionQueue{max: max}
}

// Len returns the number of pending actions.
func (q *ActionQueue) Len() int { return len(q.items) }

// Push appends a, dropping the oldest entries when the bound is exceeded.
//
// Postcondition: Returns the dropped actions, oldest first.
func (q *ActionQueue) Push(a Action) []Action {
	q.items = append(q.items, a)
	return q.Trim(q.max)
}

// Pop removes and returns the head of the queue.
func (q *ActionQueue) Pop() (Action, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	a := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return a, true
}

// Trim drops the oldest entries until at most max remain.
//
// Postcondition: Returns the dropped actions, oldest first.
func (q *ActionQueue) Trim(max int) []Action {
	if max < 0 {
		max = 0
	}
	over := len(q.items) - max
	if over <= 0 {
		return nil
	}
	dropped := make([]Action, over)
	copy(dropped, q.items[:over])
	q.items = append(q.items[:0:0], q.items[over:]...)
	return dropped
}

// Drain empties the queue and returns its former contents in order.
func (q *ActionQueue) Drain() []Action {
	out := q.items
	q.items = nil
	return out
}

// Snapshot returns a copy of the pending actions in order.
func (q *ActionQueue) Snapshot() []Action {
	out := make([]Action, len(q.items))
	copy(out, q.items)
	return out
}

// RemainingTime sums the durations of every pending action.
func (q *ActionQueue) RemainingTime() time.Duration {
	var total time.Duration
	for _, a := range q.items {
		total += durationOf(a)
	}
	return total
}
