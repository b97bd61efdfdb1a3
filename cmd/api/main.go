package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/httpx"
	"github.com/ariefcatur/go-order-fulfillment/internal/logging"
	"github.com/ariefcatur/go-order-fulfillment/internal/observability"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelCfg := observability.Config{ServiceName: cfg.ServiceName, Endpoint: cfg.OtelEndpoint, Insecure: cfg.OtelInsecure}
	otelShutdown, err := observability.Setup(ctx, otelCfg)
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Error("otel setup", zap.Error(err))
	} else if otelCfg.Enabled() {
		log = logging.WithOTel(cfg.ServiceName, cfg.LogLevel)
	}
	defer func() { _ = log.Sync() }()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis: task stream + order cache
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	queue := redisx.NewQueue(rdb, redisx.QueueConfig{
		Stream:     cfg.QueueStream,
		Group:      cfg.QueueGroup,
		Visibility: cfg.QueueVisibilityTimeout,
	})
	if err := queue.EnsureGroup(ctx); err != nil {
		log.Fatal("queue group", zap.Error(err))
	}
	cache := redisx.NewCache(rdb)

	store := postgres.NewStore(db)
	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{
		Intake: orders.NewIntake(store, queue, cache, cfg.CacheTTL, log),
		Lookup: orders.NewLookup(store, cache, cfg.CacheTTL, log),
		Log:    log,
	}).Register(router)
	(&httpx.InventoryHandler{Inventory: orders.NewInventory(store), Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if err := otelShutdown(ctx2); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
}
