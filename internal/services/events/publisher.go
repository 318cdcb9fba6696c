// Package events publishes match lifecycle events onto NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats.go"
)

// NATSPublisher sends JSON-encoded events under a common subject prefix.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger hclog.Logger
}

// Connect dials NATS at url; subjects are published under prefix.
func Connect(url, prefix string, logger hclog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	conn, err := nats.Connect(
		url,
		nats.Name("cardarena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, prefix: strings.TrimSuffix(prefix, "."), logger: logger}, nil
}

// Subject returns the fully qualified subject for name.
func (p *NATSPublisher) Subject(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

// Publish sends payload as JSON on prefix.subject.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := p.conn.Publish(p.Subject(subject), data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Ping round-trips to the server; used by the health aggregator.
func (p *NATSPublisher) Ping(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats: %s", p.conn.Status())
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(2 * time.Second)
	}
	return p.conn.FlushTimeout(time.Until(deadline))
}

// Close drains in-flight messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Conn exposes the underlying connection for subscribers.
func (p *NATSPublisher) Conn() *nats.Conn { return p.conn }

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
