// Package runtime holds the process-local presence state and the event
// bus feeding the fan-out. It contains no business rules.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"dm-lab/contract"
	"dm-lab/observability"
)

// Session is a live, addressable real-time connection bound to exactly
// one authenticated user. Sessions are owned by the Registry; other
// components only ever hold the session id string.
type Session struct {
	ID       string
	UserID   int64
	Username string
	Sink     contract.SessionSink
}

// Registry is the authoritative userID <-> sessionID index for this
// process. Both directions are mutated under one mutex so no caller
// can observe a half-applied registration. At most one session exists
// per user: registering a new one force-closes the previous.
type Registry struct {
	mu           sync.RWMutex
	log          *slog.Logger
	sessions     map[string]*Session // sessionID -> session
	userSessions map[int64]string    // userID -> sessionID
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:          log,
		sessions:     make(map[string]*Session),
		userSessions: make(map[int64]string),
	}
}

// Register installs a session. Any prior session of the same user is
// sent a transport close and evicted before the new mapping becomes
// visible. Re-registering the same (sessionID, userID) pair is a no-op
// apart from refreshing the stored session.
func (r *Registry) Register(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevID, ok := r.userSessions[session.UserID]; ok && prevID != session.ID {
		if prev, live := r.sessions[prevID]; live {
			r.log.Info("evicting previous session",
				"user_id", session.UserID, "session_id", prevID)
			prev.Sink.Close()
			delete(r.sessions, prevID)
		}
	}

	r.sessions[session.ID] = session
	r.userSessions[session.UserID] = session.ID
	observability.LiveSessions.Set(float64(len(r.sessions)))
}

// Unregister removes both index directions. Unknown ids are a no-op:
// the session may already have been evicted by a reconnect.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	if r.userSessions[session.UserID] == sessionID {
		delete(r.userSessions, session.UserID)
	}
	observability.LiveSessions.Set(float64(len(r.sessions)))
}

// Lookup returns the live session id for a user, if any. Never blocks
// on I/O.
func (r *Registry) Lookup(userID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.userSessions[userID]
	return sessionID, ok
}

// SinkFor resolves a user to the push side of their live session.
func (r *Registry) SinkFor(userID int64) (contract.SessionSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.userSessions[userID]
	if !ok {
		return nil, false
	}
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return session.Sink, true
}

func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.userSessions[userID]
	return ok
}

// LiveSessionCount is a diagnostic counter.
func (r *Registry) LiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// String summarizes the registry for debug logs.
func (r *Registry) String() string {
	return fmt.Sprintf("Registry(%d live sessions)", r.LiveSessionCount())
}
