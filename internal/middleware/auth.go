package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/service"
	"github.com/sirupsen/logrus"
)

type contextKey int

const (
	actorKey contextKey = iota
	requestIDKey
)

// Authenticator turns a bearer token into an actor
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Actor, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// resolved actor in the request context
func AuthMiddleware(auth Authenticator, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			actor, err := auth.Authenticate(r.Context(), strings.TrimSpace(token))
			if errors.Is(err, service.ErrUnauthorized) {
				log.WithField("request_id", RequestIDFrom(r.Context())).Debugf("Authentication failed: %v", err)
				unauthorized(w, "invalid or expired token")
				return
			}
			if err != nil {
				log.WithField("request_id", RequestIDFrom(r.Context())).Errorf("Failed to authenticate request: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal", "message": "internal error"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// WithActor returns a copy of ctx carrying actor
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the authenticated actor of the request
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": message})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
