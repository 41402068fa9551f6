// Package queue is the hand-off between trigger producers (the keyboard hook,
// the single-instance server) and the one pipeline consumer.
package queue

import (
	"context"
	"sync"
	"time"
)

const (
	SourceHotkey = "hotkey"
	SourceRemote = "remote"
)

// Trigger is the opaque "hotkey fired" signal. Source and At are for logs only.
type Trigger struct {
	Source string
	At     time.Time
}

// Queue is an unbounded multi-producer, single-consumer FIFO of triggers.
// Send never blocks; Receive blocks until a trigger is available.
type Queue struct {
	mu     sync.Mutex
	items  []Trigger
	notify chan struct{}
	total  uint64
}

func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Send appends t and wakes the consumer. Safe to call from any goroutine,
// including a keyboard hook callback.
func (q *Queue) Send(t Trigger) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	q.mu.Lock()
	q.items = append(q.items, t)
	q.total++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Receive returns the oldest queued trigger, waiting for one if the queue is
// empty. It returns ctx.Err() if ctx is done first.
func (q *Queue) Receive(ctx context.Context) (Trigger, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items[0] = Trigger{}
			q.items = q.items[1:]
			if len(q.items) == 0 {
				// release the backing array after a burst
				q.items = nil
			}
			q.mu.Unlock()
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Trigger{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len reports how many triggers are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Total reports how many triggers have ever been sent.
func (q *Queue) Total() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}
