package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject is used when no subject is configured.
const DefaultNATSSubject = "ingestflow.events"

// flushTimeout bounds the flush when the caller's context has no deadline.
const flushTimeout = 10 * time.Second

// publisher is the subset of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes JSON encoded events on a NATS subject. Events go
// to <subject>.<event type>, so consumers can subscribe to "<subject>.>".
type NATSNotifier struct {
	conn    publisher
	closer  func()
	Subject string
}

// NewNATSNotifier connects to url.
func NewNATSNotifier(url, subject string, opts ...nats.Option) (*NATSNotifier, error) {
	opts = append([]nats.Option{nats.Name("ingestflow")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	n := newNATSNotifier(nc, subject)
	n.closer = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return n, nil
}

func newNATSNotifier(conn publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSNotifier{conn: conn, Subject: subject}
}

// Notify implements Notifier. It waits for the server to acknowledge the
// flush so that a short-lived run does not exit with events still buffered.
func (n *NATSNotifier) Notify(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(n.Subject+"."+string(event.Type), data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	if n == nil || n.closer == nil {
		return
	}
	n.closer()
}
