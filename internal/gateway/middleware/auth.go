// Package middleware guards the editor surface: credential resolution, CORS
// and per-session rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/editor"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/logger"
)

type contextKey string

const sessionKey contextKey = "editor_session"

// EditorAuth resolves the presented credential into an editor session and
// stores it in the request context. Requests without a valid credential are
// rejected with 401.
func EditorAuth(auth *editor.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractCredential(r)
			if credential == "" {
				writeError(w, http.StatusUnauthorized, "missing credential")
				return
			}
			sess, err := auth.Authenticate(credential)
			if err != nil {
				logger.FromContext(r.Context()).Info("editor credential rejected", "remote", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "invalid credential")
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession returns the session EditorAuth attached to ctx.
func GetSession(ctx context.Context) (editor.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(editor.Session)
	return sess, ok
}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess editor.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// extractCredential reads Authorization: Bearer first, then X-API-Key.
func extractCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
