package mailer

import (
	"context"
	"fmt"

	segkafka "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/kafka"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-order-fulfillment/internal/mailer")

// Handler turns NotificationRequested events into emails.
type Handler struct {
	sender Sender
	log    *zap.Logger
}

func NewHandler(sender Sender, log *zap.Logger) *Handler {
	return &Handler{sender: sender, log: log}
}

// Handle returns an error only when a retry could succeed: undecodable and
// foreign events are logged and skipped so they do not block the partition.
func (h *Handler) Handle(ctx context.Context, m segkafka.Message) error {
	ctx, span := tracer.Start(ctx, "mailer.Handle")
	defer span.End()

	env, err := kafka.UnmarshalEnvelope(m.Value)
	if err != nil {
		h.log.Error("dropping undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	span.SetAttributes(attribute.String("event.id", env.EventID), attribute.String("event.type", env.EventType))
	if env.EventType != kafka.EventNotificationRequested {
		h.log.Warn("ignoring event", zap.String("event_type", env.EventType), zap.String("event_id", env.EventID))
		return nil
	}
	n, err := kafka.UnwrapPayload[kafka.NotificationPayload](env.Payload)
	if err != nil {
		h.log.Error("dropping invalid notification", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if n.To == "" {
		h.log.Error("dropping notification without recipient", zap.String("event_id", env.EventID))
		return nil
	}

	id, err := h.sender.Send(ctx, n.To, n.Subject, n.HTMLBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deliver %s: %w", env.EventID, err)
	}
	h.log.Info("email sent",
		zap.String("event_id", env.EventID),
		zap.String("to", n.To),
		zap.String("message_id", id),
	)
	return nil
}
