package publishd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"codeberg.org/halvard/stanza/internal/logfields"
)

// BuildEvent is the message published after every daemon build.
type BuildEvent struct {
	BuildID  string        `json:"build_id"`
	Trigger  string        `json:"trigger"`
	Outcome  string        `json:"outcome"`
	Pages    int           `json:"pages"`
	Duration time.Duration `json:"duration_ns"`
	Commit   string        `json:"commit,omitempty"`
	At       time.Time     `json:"at"`
}

// EventPublisher publishes build events to NATS. A nil publisher is valid and
// publishes nothing, keeping NATS strictly optional.
type EventPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewEventPublisher connects to NATS.
func NewEventPublisher(url, subject string) (*EventPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	slog.Info("NATS event publisher connected", logfields.URL(url), slog.String("subject", subject))
	return &EventPublisher{conn: conn, subject: subject}, nil
}

// Publish sends a build event. Failures are logged, never returned: event
// publication must not affect build outcomes.
func (p *EventPublisher) Publish(event BuildEvent) {
	if p == nil || p.conn == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("Failed to marshal build event", logfields.BuildID(event.BuildID), logfields.Error(err))
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.Warn("Failed to publish build event", logfields.BuildID(event.BuildID), logfields.Error(err))
	}
}

// Close drains the connection.
func (p *EventPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
