package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dm-lab/auth"
	"dm-lab/domain"
	"dm-lab/ratelimiter"
	"dm-lab/repositories"
	"dm-lab/runtime"
	"dm-lab/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// clientMessage is the wire frame of every client-to-server event.
type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type sendMessageData struct {
	ReceiverUsername string `json:"receiverUsername"`
	Message          string `json:"message"`
}

type connectedPayload struct {
	Success  bool   `json:"success"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Handler upgrades /chat/ws requests into live sessions. The bearer
// token is verified out-of-band from the request surface: a missing or
// invalid token, or a token referencing an absent user, never reaches
// the registry.
type Handler struct {
	log        *slog.Logger
	registry   *runtime.Registry
	users      repositories.IUserRepository
	chat       services.IChatService
	limiter    *ratelimiter.MapLimiter
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewHandler(log *slog.Logger, registry *runtime.Registry,
	users repositories.IUserRepository, chat services.IChatService,
	limiter *ratelimiter.MapLimiter, bufferSize int) *Handler {
	return &Handler{
		log:        log,
		registry:   registry,
		users:      users,
		chat:       chat,
		limiter:    limiter,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.VerifyToken(bearerToken(r))
	if err != nil {
		h.log.Info("handshake rejected", "error", err)
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	// The token may outlive the account: re-check the user exists.
	user, err := h.users.GetByID(claims.UserID)
	if err != nil {
		h.log.Info("handshake rejected, user absent", "user_id", claims.UserID)
		http.Error(w, "unknown user", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sink := NewSink(h.bufferSize)
	session := &runtime.Session{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		Username: user.Username,
		Sink:     sink,
	}
	h.registry.Register(session)
	h.log.Info("session connected",
		"session_id", session.ID, "user_id", user.ID, "username", user.Username)

	_ = sink.Push("connected", connectedPayload{
		Success:  true,
		UserID:   user.ID,
		Username: user.Username,
	})

	go h.writePump(conn, sink, session.ID)
	h.readPump(conn, sink, session)
}

// readPump processes client events until the connection drops, then
// tears the session down. Unregister is a no-op when an eviction
// already removed the session.
func (h *Handler) readPump(conn *websocket.Conn, sink *Sink, session *runtime.Session) {
	defer func() {
		h.registry.Unregister(session.ID)
		sink.Close()
		_ = conn.Close()
		h.log.Info("session disconnected", "session_id", session.ID, "user_id", session.UserID)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("read error", "session_id", session.ID, "error", err)
			}
			return
		}

		switch msg.Event {
		case "send_message":
			h.handleSendMessage(sink, session, msg.Data)
		default:
			_ = sink.Push("error", errorPayload{Message: "unknown event: " + msg.Event})
		}
	}
}

// handleSendMessage feeds the delivery pipeline from the session path.
// Any failure emits a single error event to the originating session
// and nothing else.
func (h *Handler) handleSendMessage(sink *Sink, session *runtime.Session, data json.RawMessage) {
	var payload sendMessageData
	if err := json.Unmarshal(data, &payload); err != nil {
		_ = sink.Push("error", errorPayload{Message: "malformed send_message payload"})
		return
	}

	if !h.limiter.Allow(strconv.FormatInt(session.UserID, 10), time.Now()) {
		_ = sink.Push("error", errorPayload{Message: "rate limit exceeded"})
		return
	}

	sender := domain.UserRef{ID: session.UserID, Username: session.Username}
	if _, err := h.chat.SendFrom(context.Background(), sender, payload.ReceiverUsername, payload.Message); err != nil {
		_ = sink.Push("error", errorPayload{Message: err.Error()})
	}
}

// writePump owns all writes on the connection: pushed envelopes, the
// keepalive pings, and the close frame on shutdown.
func (h *Handler) writePump(conn *websocket.Conn, sink *Sink, sessionID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-sink.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			return
		case envelope := <-sink.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope); err != nil {
				h.log.Debug("write error", "session_id", sessionID, "error", err)
				sink.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sink.Close()
				return
			}
		}
	}
}

// bearerToken accepts the credential either as a query parameter or an
// Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}
