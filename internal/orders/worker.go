package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type WorkerConfig struct {
	PollInterval time.Duration // default 10s
	BatchSize    int           // default 10
	WaitTime     time.Duration // long-poll window, default 20s
	Concurrency  int           // messages processed in parallel per batch, default 1
	CacheTTL     time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.WaitTime < 0 {
		c.WaitTime = 0
	} else if c.WaitTime == 0 {
		c.WaitTime = 20 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

// Worker consumes fulfillment tasks: it debits inventory, finalizes the
// order, refreshes the cache, notifies the customer and only then
// acknowledges the message.
type Worker struct {
	store    Store
	queue    Queue
	notifier Notifier
	reserver *Reserver
	cache    *orderCache
	cfg      WorkerConfig
	log      *zap.Logger
}

func NewWorker(store Store, queue Queue, cache Cache, notifier Notifier, cfg WorkerConfig, log *zap.Logger) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		store:    store,
		queue:    queue,
		notifier: notifier,
		reserver: NewReserver(store, log),
		cache:    newOrderCache(cache, cfg.CacheTTL, log),
		cfg:      cfg,
		log:      log,
	}
}

// Run polls until ctx is cancelled. A batch that was already received is
// always finished before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("order worker started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Duration("wait_time", w.cfg.WaitTime),
		zap.Int("concurrency", w.cfg.Concurrency),
	)
	t := time.NewTicker(w.cfg.PollInterval)
	defer t.Stop()

	for {
		w.Poll(ctx)
		select {
		case <-ctx.Done():
			w.log.Info("order worker stopping")
			return nil
		case <-t.C:
		}
	}
}

// Poll receives one batch and handles every message in it. Per-message
// errors are logged and leave that message for redelivery.
func (w *Worker) Poll(ctx context.Context) int {
	msgs, err := w.queue.Receive(ctx, w.cfg.BatchSize, w.cfg.WaitTime)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("receive from queue", zap.Error(err))
		}
		return 0
	}
	if len(msgs) == 0 {
		return 0
	}
	w.log.Info("received messages", zap.Int("count", len(msgs)))

	// the batch outlives shutdown so in-flight work is not cut in half
	bctx := context.WithoutCancel(ctx)
	if w.cfg.Concurrency == 1 {
		for _, m := range msgs {
			w.handleLogged(bctx, m)
		}
		return len(msgs)
	}

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, m := range msgs {
		m := m
		g.Go(func() error {
			w.handleLogged(bctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return len(msgs)
}

func (w *Worker) handleLogged(ctx context.Context, m Message) {
	if err := w.HandleMessage(ctx, m); err != nil {
		w.log.Error("error processing message",
			zap.String("message_id", m.ID),
			zap.Int("deliveries", m.Deliveries),
			zap.Error(err),
		)
	}
}

// HandleMessage processes one delivery and acknowledges it on success.
// Malformed bodies and unknown actions are acknowledged and dropped.
func (w *Worker) HandleMessage(ctx context.Context, m Message) error {
	ctx, span := tracer.Start(ctx, "orders.HandleMessage")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.message.id", m.ID))

	task, err := DecodeTask(m.Body)
	switch {
	case errors.Is(err, ErrUnknownAction):
		w.log.Warn("ignoring task with unknown action", zap.String("message_id", m.ID), zap.String("action", string(task.Action)))
	case err != nil:
		w.log.Error("dropping malformed task", zap.String("message_id", m.ID), zap.ByteString("body", m.Body), zap.Error(err))
	default:
		span.SetAttributes(attribute.String("order.id", task.OrderID))
		if err := w.ProcessOrder(ctx, task.OrderID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("process order %s: %w", task.OrderID, err)
		}
	}

	if err := w.queue.Ack(ctx, m.ReceiptHandle); err != nil {
		return fmt.Errorf("ack message %s: %w", m.ID, err)
	}
	return nil
}

// ProcessOrder drives a Pending order to a terminal status. Orders that are
// missing or already terminal are skipped without side effects; a nil
// return means the task may be acknowledged.
func (w *Worker) ProcessOrder(ctx context.Context, orderID string) error {
	log := w.log.With(zap.String("order_id", orderID))

	order, err := w.store.GetOrder(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		log.Error("order not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order.Status != StatusPending {
		log.Info("order already finalized", zap.String("status", string(order.Status)))
		return nil
	}

	user, err := w.store.GetUser(ctx, order.UserID)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Error("user not found for order", zap.String("user_id", order.UserID))
		final, err := finalize(ctx, w.store, w.reserver, orderID, func(context.Context, Tx, Order) (Status, string, error) {
			return StatusFailed, reasonUserNotFound, nil
		})
		if errors.Is(err, errAlreadyFinal) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fail order: %w", err)
		}
		w.cache.put(ctx, final)
		return nil
	case err != nil:
		return fmt.Errorf("load user: %w", err)
	}

	final, err := finalize(ctx, w.store, w.reserver, orderID, debit)
	if errors.Is(err, errAlreadyFinal) {
		log.Info("order finalized concurrently", zap.String("status", string(final.Status)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("finalize order: %w", err)
	}

	w.cache.put(ctx, final)
	w.notify(ctx, user, final)

	fields := []zap.Field{zap.String("status", string(final.Status))}
	if final.FailureReason != "" {
		fields = append(fields, zap.String("reason", final.FailureReason))
	}
	log.Info("order processed", fields...)
	return nil
}

func (w *Worker) notify(ctx context.Context, u User, o Order) {
	if w.notifier == nil {
		return
	}
	subject, body, err := RenderNotification(o)
	if err != nil {
		w.log.Error("render order notification", zap.String("order_id", o.OrderID), zap.Error(err))
		return
	}
	id, err := w.notifier.Send(ctx, u.Email, subject, body)
	if err != nil {
		w.log.Error("error sending order notification", zap.String("order_id", o.OrderID), zap.String("to", u.Email), zap.Error(err))
		return
	}
	w.log.Info("order notification sent", zap.String("order_id", o.OrderID), zap.String("to", u.Email), zap.String("delivery_id", id))
}
