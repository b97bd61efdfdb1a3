package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/kafka"
)

type sent struct{ to, subject, body string }

type fakeSender struct {
	err  error
	sent []sent
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sent{to, subject, body})
	return "msg-1", nil
}

func event(t *testing.T, eventType string, payload any) segkafka.Message {
	t.Helper()
	p, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(kafka.Envelope{EventID: "e1", EventType: eventType, EventVersion: 1, Payload: p})
	require.NoError(t, err)
	return segkafka.Message{Value: b}
}

func TestHandler_SendsNotification(t *testing.T) {
	s := &fakeSender{}
	h := NewHandler(s, zap.NewNop())

	err := h.Handle(context.Background(), event(t, kafka.EventNotificationRequested,
		kafka.NotificationPayload{To: "user@example.com", Subject: "Order Processed: o1", HTMLBody: "<p>ok</p>"}))
	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	assert.Equal(t, sent{"user@example.com", "Order Processed: o1", "<p>ok</p>"}, s.sent[0])
}

func TestHandler_SkipsWhatCannotBeDelivered(t *testing.T) {
	s := &fakeSender{}
	h := NewHandler(s, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, segkafka.Message{Value: []byte("garbage")}))
	require.NoError(t, h.Handle(ctx, event(t, "OrderCreated", map[string]string{"order_id": "o1"})))
	require.NoError(t, h.Handle(ctx, event(t, kafka.EventNotificationRequested, kafka.NotificationPayload{Subject: "no recipient"})))
	assert.Empty(t, s.sent)
}

func TestHandler_SendFailureIsRetried(t *testing.T) {
	s := &fakeSender{err: errors.New("connection refused")}
	h := NewHandler(s, zap.NewNop())

	err := h.Handle(context.Background(), event(t, kafka.EventNotificationRequested,
		kafka.NotificationPayload{To: "user@example.com", Subject: "s", HTMLBody: "b"}))
	require.Error(t, err)
}

func TestSMTPSender_BuildsHTMLMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Addr: "mail.example.com:587", From: "orders@example.com", Username: "u", Password: "p"})
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	id, err := s.Send(context.Background(), "user@example.com", "Order Processed: o1", "<h2>Order Processed</h2>")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@example.com>"), id)
	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, "orders@example.com", gotFrom)
	assert.Equal(t, []string{"user@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Order Processed: o1\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.Contains(t, msg, "Message-ID: "+id+"\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<h2>Order Processed</h2>"))
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	msg := string(buildMessage("a@x.io", "b@x.io", "Pedido Procesado ✓", "<p/>", "<id@x.io>", time.Unix(0, 0).UTC()))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
}
