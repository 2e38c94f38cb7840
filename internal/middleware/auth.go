package middleware

import (
	"context"
	"net/http"
	"time"

	"medauth-service/internal/session"
)

// unexported, collision-proof context key
type subjectIDContextKeyType struct{}

var subjectIDKey = subjectIDContextKeyType{}

// SubjectIDFromContext extracts the authenticated subject ID from context.
func SubjectIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectIDKey).(string)
	return id, ok
}

type AuthMiddleware struct {
	Store session.Store
}

func NewAuthMiddleware(store session.Store) *AuthMiddleware {
	return &AuthMiddleware{Store: store}
}

// RequireAccepted is the final gate: only a session whose full factor
// chain completed (state accepted) and whose TTL has not lapsed may
// reach protected resources.
func (a *AuthMiddleware) RequireAccepted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get("X-Session-ID")
		if sessionID == "" {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			sessionID = cookie.Value
		}

		sess, err := a.Store.Get(r.Context(), sessionID)
		if err != nil || sess == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if sess.State != session.StateAccepted {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if time.Now().After(sess.ExpiresAt) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectIDKey, sess.SubjectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
