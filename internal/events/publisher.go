// Package events publishes run telemetry to NATS JetStream. Publishing is
// optional and advisory: when disabled the pipeline wires a NoopPublisher,
// and when a publish fails callers log a warning and carry on. Events never
// gate or coordinate runs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/qaops/migratrack/internal/config"
)

const (
	initTimeout    = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher emits run telemetry events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, event *RunCompletedEvent) error
	PublishSourceDegraded(ctx context.Context, event *SourceDegradedEvent) error
	Close() error
}

// NoopPublisher discards all events. It is the default wiring when event
// publishing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishRunCompleted(context.Context, *RunCompletedEvent) error     { return nil }
func (NoopPublisher) PublishSourceDegraded(context.Context, *SourceDegradedEvent) error { return nil }
func (NoopPublisher) Close() error                                                      { return nil }

// NATSPublisher publishes events to a JetStream stream. Subjects follow
// <prefix>.<event_type>.<project>, so consumers can subscribe per event
// type or per project with subject wildcards.
type NATSPublisher struct {
	conn          *nats.Conn
	js            jetstream.JetStream
	subjectPrefix string
	stream        string
}

// NewNATSPublisher connects to NATS and ensures the event stream exists.
func NewNATSPublisher(cfg *config.EventsConfig) (*NATSPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("events config is required")
	}

	if !cfg.Enabled {
		return nil, fmt.Errorf("event publishing is disabled")
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &NATSPublisher{
		conn:          conn,
		js:            js,
		subjectPrefix: cfg.SubjectPrefix,
		stream:        cfg.Stream,
	}

	if err := p.initStream(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize event stream: %w", err)
	}

	slog.Info("NATS event publisher initialized",
		"url", cfg.URL,
		"subject_prefix", cfg.SubjectPrefix,
		"stream", cfg.Stream)

	return p, nil
}

// initStream creates the event stream unless it already exists.
func (p *NATSPublisher) initStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	if _, err := p.js.Stream(ctx, p.stream); err == nil {
		return nil
	}

	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        p.stream,
		Description: "Migration tracking run telemetry",
		Subjects:    []string{p.subjectPrefix + ".>"},
		MaxBytes:    100 * 1024 * 1024, // 100MB max
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	slog.Info("Created event stream", "stream", p.stream)
	return nil
}

// PublishRunCompleted publishes a run summary event.
func (p *NATSPublisher) PublishRunCompleted(ctx context.Context, event *RunCompletedEvent) error {
	event.Timestamp = time.Now().UTC()
	return p.publish(ctx, p.subjectFor(TypeRunCompleted, event.Project), event)
}

// PublishSourceDegraded publishes a source failure event.
func (p *NATSPublisher) PublishSourceDegraded(ctx context.Context, event *SourceDegradedEvent) error {
	event.Timestamp = time.Now().UTC()
	return p.publish(ctx, p.subjectFor(TypeSourceDegraded, event.Project), event)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, event any) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published event", "subject", subject)
	return nil
}

// subjectFor builds the subject for an event type and project key. Project
// keys are user input and may contain characters that are meaningful in
// NATS subjects, so the project segment is sanitized.
func (p *NATSPublisher) subjectFor(eventType, project string) string {
	return p.subjectPrefix + "." + eventType + "." + sanitizeToken(project)
}

// sanitizeToken maps a project key onto a single safe subject token.
func sanitizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
