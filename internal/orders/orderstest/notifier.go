package orderstest

import (
	"context"
	"fmt"
	"sync"
)

type Sent struct {
	To      string
	Subject string
	Body    string
}

// Notifier records every Send.
type Notifier struct {
	mu   sync.Mutex
	sent []Sent
	err  error
}

func NewNotifier() *Notifier { return &Notifier{} }

// Fail makes Send return err; nil clears it.
func (n *Notifier) Fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *Notifier) Send(_ context.Context, to, subject, body string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	n.sent = append(n.sent, Sent{To: to, Subject: subject, Body: body})
	return fmt.Sprintf("delivery-%d", len(n.sent)), nil
}

func (n *Notifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}
