package contract

import (
	"context"
	"reflect"

	"dm-lab/domain/event"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// SessionSink is the push side of one live session. Push is
// fire-and-forget: implementations must never block the fan-out and
// may drop when the session buffer is full. Close signals a
// transport-level disconnect (used on eviction).
type SessionSink interface {
	Push(event string, data any) error
	Close()
}

// IRegistry is the presence view the fan-out needs: resolve a user id
// to their live sink, if any.
type IRegistry interface {
	SinkFor(userID int64) (SessionSink, bool)
	IsOnline(userID int64) bool
}

// EventBus is the publish side handed to the services. Publication is
// non-blocking and in-memory.
type EventBus interface {
	Publish(e event.DomainEvent)
}
