// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"container/heap"
	"time"

	"github.com/google/uuid"

	"github.com/ctr/ramses-rf/pkg/ramses"
)

// QueueCapacity is the bounded capacity of §4.6.
const QueueCapacity = 10

// Entry is a single pending send, per §4.6's
// (priority, dt_submitted, cmd, dt_expires, send_future) tuple.
type Entry struct {
	ID           uuid.UUID
	Priority     int
	Submitted    time.Time
	Cmd          *ramses.Command
	Expires      time.Time
	MaxRetries   int
	ResultCh     chan<- Result
	WaitForReply *bool
	done         bool
	cancelled    bool
}

// Done reports whether this entry has already been dispatched to
// completion, failed, or cancelled and should be skipped/removed on the next
// drain pass.
func (e *Entry) Done() bool { return e.done || e.cancelled }

// Cancel marks the entry done without transmitting it (§5, "Cancellation").
// If the command was already in flight the caller is responsible for letting
// its retry loop exit after the current wait; Cancel only prevents a queued,
// not-yet-dispatched entry from being sent.
func (e *Entry) Cancel() { e.cancelled = true }

// pqueue implements container/heap.Interface ordered by (priority asc,
// submitted asc) per §4.6 ("lower value sooner; ties broken by
// dt_submitted").
type pqueue []*Entry

func (q pqueue) Len() int { return len(q) }
func (q pqueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority < q[j].Priority
	}
	return q[i].Submitted.Before(q[j].Submitted)
}
func (q pqueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pqueue) Push(x interface{}) {
	*q = append(*q, x.(*Entry))
}
func (q *pqueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Queue is the bounded priority send queue of §4.6. Like Context it is
// owned by a single event loop and is not safe for concurrent use.
type Queue struct {
	entries pqueue
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	q := &Queue{entries: pqueue{}}
	heap.Init(&q.entries)
	return q
}

// ErrQueueFull is returned by Submit when the queue is at capacity.
var ErrQueueFull = newError(ErrSendFailed, "send queue is full (capacity %d)", QueueCapacity)

// Submit enqueues a new entry. It fails immediately (no blocking) if the
// queue is already at QueueCapacity, per §4.6/§5 ("Backpressure").
func (q *Queue) Submit(e *Entry) error {
	if len(q.entries) >= QueueCapacity {
		return ErrQueueFull
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	heap.Push(&q.entries, e)
	return nil
}

// Len reports the number of entries currently queued.
func (q *Queue) Len() int { return len(q.entries) }

// Drain is called every time the FSM returns to IsInIdle or IsFailed (§4.6):
// it removes cancelled/completed entries, fails expired ones with
// ProtocolWaitFailed, and returns the first live entry (if any) to dispatch.
// The caller is responsible for popping the returned entry via Pop once it
// has been handed to the FSM.
func (q *Queue) Drain(now time.Time) *Entry {
	for len(q.entries) > 0 {
		head := q.entries[0]
		if head.Done() {
			heap.Pop(&q.entries)
			continue
		}
		if !head.Expires.IsZero() && now.After(head.Expires) {
			heap.Pop(&q.entries)
			if head.ResultCh != nil {
				head.ResultCh <- Result{Err: newError(ErrWaitFailed, "expired in queue before dispatch")}
			}
			continue
		}
		return head
	}
	return nil
}

// Pop removes and returns the current head, for use immediately after Drain
// hands a live entry to the FSM.
func (q *Queue) Pop() *Entry {
	if len(q.entries) == 0 {
		return nil
	}
	return heap.Pop(&q.entries).(*Entry)
}
