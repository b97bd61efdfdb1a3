package orderstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Queue is an in-memory orders.Queue with visibility timeout semantics:
// a received message is hidden until acknowledged or until Visibility
// elapses, after which it is delivered again.
type Queue struct {
	mu         sync.Mutex
	entries    []*entry
	seq        int
	arrived    chan struct{}
	enqueueErr error

	Visibility time.Duration
	Now        func() time.Time
}

type entry struct {
	id         string
	body       []byte
	receipt    string
	visibleAt  time.Time
	deliveries int
}

func NewQueue() *Queue {
	return &Queue{
		arrived:    make(chan struct{}),
		Visibility: 30 * time.Second,
		Now:        time.Now,
	}
}

// FailEnqueue makes Enqueue return err; nil clears it.
func (q *Queue) FailEnqueue(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueueErr = err
}

func (q *Queue) Enqueue(_ context.Context, body []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.seq++
	id := fmt.Sprintf("msg-%d", q.seq)
	q.entries = append(q.entries, &entry{id: id, body: append([]byte(nil), body...)})
	close(q.arrived)
	q.arrived = make(chan struct{})
	return id, nil
}

func (q *Queue) Receive(ctx context.Context, max int, wait time.Duration) ([]orders.Message, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		q.mu.Lock()
		msgs := q.take(max)
		arrived := q.arrived
		q.mu.Unlock()
		if len(msgs) > 0 {
			return msgs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-arrived:
		}
	}
}

func (q *Queue) take(max int) []orders.Message {
	now := q.Now()
	var out []orders.Message
	for _, e := range q.entries {
		if len(out) == max {
			break
		}
		if e.visibleAt.After(now) {
			continue
		}
		q.seq++
		e.receipt = fmt.Sprintf("%s#%d", e.id, q.seq)
		e.visibleAt = now.Add(q.Visibility)
		e.deliveries++
		out = append(out, orders.Message{
			ID:            e.id,
			Body:          append([]byte(nil), e.body...),
			ReceiptHandle: e.receipt,
			Deliveries:    e.deliveries,
		})
	}
	return out
}

func (q *Queue) Ack(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.receipt == receiptHandle {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("receipt handle %s: %w", receiptHandle, orders.ErrNotFound)
}

// ExpireVisibility makes every in-flight message deliverable again.
func (q *Queue) ExpireVisibility() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		e.visibleAt = time.Time{}
	}
}

// Bodies returns the bodies of all unacknowledged messages.
func (q *Queue) Bodies() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.body)
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
