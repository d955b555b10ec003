package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"dm-lab/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// requireAuth resolves the bearer credential to the caller's identity
// before any business logic runs. Absence or invalidity rejects the
// request with an authentication failure.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := auth.VerifyToken(token)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom extracts the authenticated identity installed by
// requireAuth. Handlers behind the middleware can rely on it being
// present.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// logRequests tags every request with an id and logs method, uri and
// duration.
func logRequests(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		start := time.Now()

		log.Info("incoming http request",
			"id", id,
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"ip", r.RemoteAddr,
		)

		next.ServeHTTP(w, r)

		log.Debug("request done", "id", id, "duration", time.Since(start))
	})
}
