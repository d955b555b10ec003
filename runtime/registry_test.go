package runtime

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// recordingSink counts pushes and closes for assertions.
type recordingSink struct {
	pushed []string
	closed bool
}

func (s *recordingSink) Push(event string, _ any) error {
	s.pushed = append(s.pushed, event)
	return nil
}

func (s *recordingSink) Close() { s.closed = true }

func TestRegistry_Register_One_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	sink := &recordingSink{}

	// Given no user is connected
	req.Zero(registry.LiveSessionCount())
	req.False(registry.IsOnline(1))

	// When a session registers
	session := &Session{ID: uuid.NewString(), UserID: 1, Username: "alice", Sink: sink}
	registry.Register(session)

	// Then the user is online and addressable
	req.Equal(1, registry.LiveSessionCount())
	req.True(registry.IsOnline(1))

	sessionID, ok := registry.Lookup(1)
	req.True(ok)
	req.Equal(session.ID, sessionID)

	got, ok := registry.SinkFor(1)
	req.True(ok)
	req.Same(sink, got.(*recordingSink))
}

func TestRegistry_Register_Evicts_Previous_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	oldSink := &recordingSink{}
	newSink := &recordingSink{}

	// Given a user with a live session
	registry.Register(&Session{ID: "old", UserID: 1, Username: "alice", Sink: oldSink})

	// When the same user registers a second session
	registry.Register(&Session{ID: "new", UserID: 1, Username: "alice", Sink: newSink})

	// Then the old session was closed and forgotten
	req.True(oldSink.closed)
	req.Equal(1, registry.LiveSessionCount())

	sessionID, ok := registry.Lookup(1)
	req.True(ok)
	req.Equal("new", sessionID)

	got, ok := registry.SinkFor(1)
	req.True(ok)
	req.Same(newSink, got.(*recordingSink))
}

func TestRegistry_Stale_Unregister_Keeps_New_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	// Given an evicted session whose read loop has not noticed yet
	registry.Register(&Session{ID: "old", UserID: 1, Username: "alice", Sink: &recordingSink{}})
	registry.Register(&Session{ID: "new", UserID: 1, Username: "alice", Sink: &recordingSink{}})

	// When the stale session unregisters late
	registry.Unregister("old")

	// Then the replacement mapping survives
	req.True(registry.IsOnline(1))
	sessionID, ok := registry.Lookup(1)
	req.True(ok)
	req.Equal("new", sessionID)
}

func TestRegistry_Unregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	registry.Register(&Session{ID: "s1", UserID: 1, Username: "alice", Sink: &recordingSink{}})

	registry.Unregister("s1")

	req.Zero(registry.LiveSessionCount())
	req.False(registry.IsOnline(1))
	_, ok := registry.SinkFor(1)
	req.False(ok)

	// Unknown ids are a no-op
	registry.Unregister("never-existed")
}

func TestRegistry_Multiple_Users(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	registry.Register(&Session{ID: "s1", UserID: 1, Username: "alice", Sink: &recordingSink{}})
	registry.Register(&Session{ID: "s2", UserID: 2, Username: "bob", Sink: &recordingSink{}})

	req.Equal(2, registry.LiveSessionCount())
	req.True(registry.IsOnline(1))
	req.True(registry.IsOnline(2))
	req.False(registry.IsOnline(3))
}
