package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front of the service: the REST API, the metrics
// endpoint and the real-time socket upgrade all hang off one mux.
type Server struct {
	log  *slog.Logger
	http *http.Server
}

func NewServer(log *slog.Logger, host string, port int, h *Handlers, socket http.Handler) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)

	mux.Handle("POST /chat/send", requireAuth(http.HandlerFunc(h.sendMessage)))
	mux.Handle("GET /chat/history", requireAuth(http.HandlerFunc(h.history)))
	mux.Handle("PATCH /chat/edit/{id}", requireAuth(http.HandlerFunc(h.editMessage)))
	mux.Handle("DELETE /chat/delete/{id}", requireAuth(http.HandlerFunc(h.deleteMessage)))

	mux.Handle("POST /contact/request", requireAuth(http.HandlerFunc(h.sendContactRequest)))
	mux.Handle("GET /contact/requests", requireAuth(http.HandlerFunc(h.pendingRequests)))
	mux.Handle("PATCH /contact/accept/{id}", requireAuth(http.HandlerFunc(h.acceptRequest)))
	mux.Handle("DELETE /contact/reject/{id}", requireAuth(http.HandlerFunc(h.rejectRequest)))
	mux.Handle("GET /contact/list", requireAuth(http.HandlerFunc(h.listContacts)))

	// The socket handshake carries its own token, so it sits outside
	// requireAuth.
	mux.Handle("GET /chat/ws", socket)

	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{
		log: log,
		http: &http.Server{
			Addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
			Handler: logRequests(mux, log),
		},
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
