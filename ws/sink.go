// Package ws implements the real-time session channel on top of
// gorilla/websocket: handshake authentication, one read and one write
// pump per connection, and the per-session push sink the fan-out
// addresses.
package ws

import (
	"errors"
	"sync"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrBufferFull    = errors.New("session buffer full")
)

// Envelope is the wire frame of every server-to-client event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Sink is the push side of one live session: a buffered channel the
// fan-out writes into and the write pump drains. Push never blocks;
// when the buffer is full the event is dropped and reported, keeping
// backpressure away from the delivery pipeline.
type Sink struct {
	messages  chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func NewSink(bufferSize int) *Sink {
	return &Sink{
		messages: make(chan Envelope, bufferSize),
		done:     make(chan struct{}),
	}
}

func (s *Sink) Push(event string, data any) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.messages <- Envelope{Event: event, Data: data}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close signals a transport-level disconnect. Safe to call more than
// once; used by the registry on eviction and by the pumps on teardown.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Messages is drained by the write pump.
func (s *Sink) Messages() <-chan Envelope {
	return s.messages
}

// Done is closed when the session must shut down.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}
