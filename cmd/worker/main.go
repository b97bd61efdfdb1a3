package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/logging"
	"github.com/ariefcatur/go-order-fulfillment/internal/observability"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-worker"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelCfg := observability.Config{ServiceName: service, Endpoint: cfg.OtelEndpoint, Insecure: cfg.OtelInsecure}
	otelShutdown, err := observability.Setup(ctx, otelCfg)
	log := logging.New(service, cfg.LogLevel)
	if err != nil {
		log.Error("otel setup", zap.Error(err))
	} else if otelCfg.Enabled() {
		log = logging.WithOTel(service, cfg.LogLevel)
	}
	defer func() { _ = log.Sync() }()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	host, _ := os.Hostname()
	queue := redisx.NewQueue(rdb, redisx.QueueConfig{
		Stream:     cfg.QueueStream,
		Group:      cfg.QueueGroup,
		Consumer:   host,
		Visibility: cfg.QueueVisibilityTimeout,
	})
	if err := queue.EnsureGroup(ctx); err != nil {
		log.Fatal("queue group", zap.Error(err))
	}

	// Notifications go out through Kafka; the mailer delivers them.
	prodCtx, stopProducer := context.WithCancel(context.Background())
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic, 1024, log)
	prod.Start(prodCtx)

	w := orders.NewWorker(
		postgres.NewStore(db),
		queue,
		redisx.NewCache(rdb),
		kafkax.NewNotifier(prod, service),
		orders.WorkerConfig{
			PollInterval: cfg.WorkerPollInterval,
			BatchSize:    cfg.WorkerBatchSize,
			WaitTime:     cfg.WorkerWaitTime,
			Concurrency:  cfg.WorkerConcurrency,
			CacheTTL:     cfg.CacheTTL,
		},
		log,
	)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down worker...")
		cancel()
		<-done
	case err := <-done:
		log.Error("worker exit", zap.Error(err))
	}

	stopProducer()
	prod.WaitClosed()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := otelShutdown(ctx2); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
}
