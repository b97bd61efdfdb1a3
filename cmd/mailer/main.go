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
	"github.com/ariefcatur/go-order-fulfillment/internal/mailer"
	"github.com/ariefcatur/go-order-fulfillment/internal/observability"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-mailer"
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

	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
	})
	h := mailer.NewHandler(sender, log)

	workers := cfg.WorkerConcurrency
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.MailerGroup, cfg.NotifyTopic, workers, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("mailer consumer started",
			zap.String("group", cfg.MailerGroup),
			zap.String("topic", cfg.NotifyTopic),
			zap.Int("workers", workers),
		)
		if err := cons.Start(ctx, h.Handle); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer...")
		cancel()
	case <-ctx.Done():
	}
	<-done

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := otelShutdown(ctx2); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
}
