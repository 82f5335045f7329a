// Package events publishes session/queue lifecycle notifications to RabbitMQ
// for the external admin surface. Events are advisory; a publish failure is
// logged and never propagated to the operation that produced it.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/robloxguru/gamebridge/shared/rabbitmq"
)

const (
	EventCommandEnqueued = "command.enqueued"
	EventSessionReaped   = "session.reaped"
)

// Event is the wire format of a lifecycle notification
type Event struct {
	Event  string `json:"event"`
	JobID  string `json:"job_id"`
	APIKey string `json:"api_key"`
	At     string `json:"at"`
}

// Publisher emits lifecycle events through the shared RabbitMQ client
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// CommandEnqueued announces a new command in a session's backlog
func (p *Publisher) CommandEnqueued(ctx context.Context, jobID, apiKey string) {
	p.publish(ctx, Event{
		Event:  EventCommandEnqueued,
		JobID:  jobID,
		APIKey: apiKey,
		At:     time.Now().UTC().Format(time.RFC3339),
	})
}

// SessionReaped announces the eviction of a stale session
func (p *Publisher) SessionReaped(ctx context.Context, jobID, apiKey string) {
	p.publish(ctx, Event{
		Event:  EventSessionReaped,
		JobID:  jobID,
		APIKey: apiKey,
		At:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publish(ctx context.Context, event Event) {
	if err := p.client.PublishJSON(ctx, event); err != nil {
		p.logger.Warn("Failed to publish lifecycle event",
			slog.String("event", event.Event),
			slog.String("job_id", event.JobID),
			slog.String("error", err.Error()),
		)
	}
}
