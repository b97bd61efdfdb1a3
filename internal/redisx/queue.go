package redisx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type QueueConfig struct {
	Stream     string
	Group      string
	Consumer   string
	Visibility time.Duration // idle time before a pending entry is re-claimed
}

// Queue implements orders.Queue on a Redis Stream consumer group. Entries
// read but not acknowledged stay in the group's pending list and are taken
// over by the next Receive once they have been idle for Visibility.
type Queue struct {
	rdb *redis.Client
	cfg QueueConfig
}

func NewQueue(rdb *redis.Client, cfg QueueConfig) *Queue {
	if cfg.Stream == "" {
		cfg.Stream = DefaultTaskStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultTaskGroup
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker"
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = DefaultVisibility
	}
	return &Queue{rdb: rdb, cfg: cfg}
}

// EnsureGroup creates the stream and consumer group if needed.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), errBusyGroup) {
		return fmt.Errorf("create group %s on %s: %w", q.cfg.Group, q.cfg.Stream, err)
	}
	return nil
}

func (q *Queue) Enqueue(ctx context.Context, body []byte) (string, error) {
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: map[string]any{fieldBody: body},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", q.cfg.Stream, err)
	}
	return id, nil
}

// Receive returns expired in-flight entries first, then new ones, blocking
// up to wait when there are none.
func (q *Queue) Receive(ctx context.Context, max int, wait time.Duration) ([]orders.Message, error) {
	claimed, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  q.cfg.Visibility,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim %s: %w", q.cfg.Stream, err)
	}
	if len(claimed) > 0 {
		return q.toMessages(claimed, q.deliveries(ctx, claimed)), nil
	}

	block := wait
	if block <= 0 {
		block = -1 // no BLOCK argument
	}
	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    int64(max),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", q.cfg.Stream, err)
	}
	var out []orders.Message
	for _, s := range streams {
		out = append(out, q.toMessages(s.Messages, nil)...)
	}
	return out, nil
}

// Ack removes the entry from the pending list and the stream.
func (q *Queue) Ack(ctx context.Context, receiptHandle string) error {
	var ack *redis.IntCmd
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		ack = p.XAck(ctx, q.cfg.Stream, q.cfg.Group, receiptHandle)
		p.XDel(ctx, q.cfg.Stream, receiptHandle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack %s: %w", receiptHandle, err)
	}
	if ack.Val() == 0 {
		return fmt.Errorf("ack %s: %w", receiptHandle, orders.ErrNotFound)
	}
	return nil
}

// deliveries looks up delivery counts for re-claimed entries. Counts are
// informational, so lookup errors are ignored.
func (q *Queue) deliveries(ctx context.Context, msgs []redis.XMessage) map[string]int {
	pending, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.cfg.Stream,
		Group:  q.cfg.Group,
		Start:  msgs[0].ID,
		End:    msgs[len(msgs)-1].ID,
		Count:  int64(len(msgs)),
	}).Result()
	if err != nil {
		return nil
	}
	out := make(map[string]int, len(pending))
	for _, p := range pending {
		out[p.ID] = int(p.RetryCount)
	}
	return out
}

func (q *Queue) toMessages(in []redis.XMessage, deliveries map[string]int) []orders.Message {
	out := make([]orders.Message, 0, len(in))
	for _, m := range in {
		n, ok := deliveries[m.ID]
		if !ok {
			n = 1
		}
		out = append(out, orders.Message{
			ID:            m.ID,
			Body:          bodyOf(m),
			ReceiptHandle: m.ID,
			Deliveries:    n,
		})
	}
	return out
}

func bodyOf(m redis.XMessage) []byte {
	switch v := m.Values[fieldBody].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	}
	return nil
}
