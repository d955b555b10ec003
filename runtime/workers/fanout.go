package workers

import (
	"context"
	"log/slog"
	"time"

	"dm-lab/contract"
	"dm-lab/domain"
	"dm-lab/domain/event"
	"dm-lab/observability"
)

// Fanout is the single consumer of the event bus. It converts each
// domain event into zero, one, or two addressed pushes through the
// registry. Pushes are best-effort: an offline participant is skipped,
// a full session buffer drops, and neither ever fails the mutation
// that published the event.
type Fanout struct {
	log      *slog.Logger
	events   <-chan event.DomainEvent
	registry contract.IRegistry
}

func NewFanout(log *slog.Logger, events <-chan event.DomainEvent, registry contract.IRegistry) *Fanout {
	return &Fanout{log: log, events: events, registry: registry}
}

func (f *Fanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.log.Debug("Context done, stopping fan-out")
			return nil
		case evt := <-f.events:
			f.dispatch(evt)
		}
	}
}

func (f *Fanout) dispatch(evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.MessageSent:
		data := newMessagePayload{
			ID:        e.Message.ID,
			Message:   e.Message.Body,
			Sender:    e.Sender,
			Receiver:  e.Receiver,
			Status:    string(e.Message.Status),
			CreatedAt: e.Message.CreatedAt,
			Timestamp: time.Now().UTC(),
		}
		f.push(e.Receiver.ID, "new_message", data)
		f.push(e.Sender.ID, "new_message", data)
		f.push(e.Sender.ID, "message_sent", messageSentPayload{
			MessageID: e.Message.ID,
			Status:    string(domain.StatusSent),
			Timestamp: time.Now().UTC(),
		})

	case event.MessageEdited:
		data := messageEditedPayload{
			MessageID:  e.MessageID,
			NewMessage: e.NewBody,
			EditedAt:   time.Now().UTC(),
		}
		f.push(e.SenderID, "message_edited", data)
		f.push(e.ReceiverID, "message_edited", data)

	case event.MessageDeleted:
		data := messageDeletedPayload{
			MessageID: e.MessageID,
			DeletedAt: time.Now().UTC(),
		}
		f.push(e.SenderID, "message_deleted", data)
		f.push(e.ReceiverID, "message_deleted", data)

	case event.ContactRequestSent:
		f.push(e.Request.ReceiverID, "new_contact_request", contactRequestPayload{
			ID:        e.Request.ID,
			Sender:    e.Sender,
			Status:    string(e.Request.Status),
			CreatedAt: e.Request.CreatedAt,
		})

	case event.ContactAccepted:
		f.push(e.SenderID, "contacts_updated", nil)
		f.push(e.ReceiverID, "contacts_updated", nil)
	}
}

// push addresses one live session, skipping offline users.
func (f *Fanout) push(userID int64, eventName string, data any) {
	sink, ok := f.registry.SinkFor(userID)
	if !ok {
		return
	}
	if err := sink.Push(eventName, data); err != nil {
		observability.SessionPushesDropped.Inc()
		f.log.Debug("push dropped", "user_id", userID, "event", eventName, "error", err)
		return
	}
	observability.SessionPushes.WithLabelValues(eventName).Inc()
}

// Server-to-client payloads. Field names follow the wire contract of
// the real-time channel.

type newMessagePayload struct {
	ID        int64          `json:"id"`
	Message   string         `json:"message"`
	Sender    domain.UserRef `json:"sender"`
	Receiver  domain.UserRef `json:"receiver"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	Timestamp time.Time      `json:"timestamp"`
}

type messageSentPayload struct {
	MessageID int64     `json:"messageId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type messageEditedPayload struct {
	MessageID  int64     `json:"messageId"`
	NewMessage string    `json:"newMessage"`
	EditedAt   time.Time `json:"editedAt"`
}

type messageDeletedPayload struct {
	MessageID int64     `json:"messageId"`
	DeletedAt time.Time `json:"deletedAt"`
}

type contactRequestPayload struct {
	ID        int64          `json:"id"`
	Sender    domain.UserRef `json:"sender"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}
