package runtime

import (
	"log/slog"

	"dm-lab/domain/event"
	"dm-lab/observability"
)

// Bus is the in-memory publish side of the event fan-out. Publication
// never blocks the mutation path that calls it: when the buffer is
// full the event is dropped and counted, because the persisted row is
// already the durable source of truth.
type Bus struct {
	log    *slog.Logger
	events chan event.DomainEvent
}

func NewBus(log *slog.Logger, bufferSize int) *Bus {
	return &Bus{
		log:    log,
		events: make(chan event.DomainEvent, bufferSize),
	}
}

func (b *Bus) Publish(e event.DomainEvent) {
	select {
	case b.events <- e:
	default:
		observability.BusEventsDropped.Inc()
		b.log.Warn("event bus full, dropping event", "event", eventName(e))
	}
}

// Events is the consume side, drained by the fan-out worker.
func (b *Bus) Events() <-chan event.DomainEvent {
	return b.events
}

func eventName(e event.DomainEvent) string {
	switch e.(type) {
	case event.MessageSent:
		return "message.sent"
	case event.MessageEdited:
		return "message.edited"
	case event.MessageDeleted:
		return "message.deleted"
	case event.ContactRequestSent:
		return "contact.request.sent"
	case event.ContactAccepted:
		return "contact.accepted"
	default:
		return "unknown"
	}
}
