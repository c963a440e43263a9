package services

import (
	"context"
	"log/slog"

	"shoplist/internal/amqp"
	"shoplist/internal/log"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	Publish(ctx context.Context, ev amqp.Event) error
}

// publish is fire-and-forget: the write has already committed, so a broker
// failure is logged and never returned.
func publish(ctx context.Context, p EventPublisher, ev amqp.Event) {
	if p == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping event", log.FieldEventType, ev.Type)
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			log.FieldEventType, ev.Type,
			log.FieldEventID, ev.ID,
			log.FieldError, err)
	}
}
