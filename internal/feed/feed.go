// Package feed publishes every persisted message to a NATS subject for
// downstream aggregators.
package feed

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"acars_hub/internal/message"
)

// Publisher forwards stored messages to NATS. Publishing is best-effort; the
// client buffers and reconnects on its own.
type Publisher struct {
	conn    *nats.Conn
	subject string
	log     *zap.Logger
}

// Connect dials the NATS server. The connection retries forever in the
// background, so a feed outage never takes the hub down with it.
func Connect(url, subject string, log *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("feed disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("feed reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn, subject: subject, log: log}, nil
}

// Publish sends one stored message as JSON.
func (p *Publisher) Publish(m *message.Stored) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal feed message: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.log.Warn("feed drain failed", zap.Error(err))
	}
}
