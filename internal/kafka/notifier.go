package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-order-fulfillment/internal/tracing"
)

// Notifier implements orders.Notifier by publishing a NotificationRequested
// event; the mailer process performs the delivery.
type Notifier struct {
	p       *Producer
	service string
}

func NewNotifier(p *Producer, service string) *Notifier {
	return &Notifier{p: p, service: service}
}

// Send returns the event id once the event is accepted by the producer.
func (n *Notifier) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	payload, err := json.Marshal(NotificationPayload{To: to, Subject: subject, HTMLBody: htmlBody})
	if err != nil {
		return "", fmt.Errorf("encode notification: %w", err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventNotificationRequested,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.service,
		CorrelationID: to,
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	if err := n.p.Publish(ctx, PartitionKey(to), b, tracing.InjectKafkaHeaders(ctx, nil)...); err != nil {
		return "", fmt.Errorf("publish notification: %w", err)
	}
	return env.EventID, nil
}
