package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hellow-star/job-app-tracker/internal/models"
	"github.com/hellow-star/job-app-tracker/internal/store"
)

const sessionCookieName = "session"

type sessionContextKey struct{}

// AuthMiddleware resolves the request's session token and stores the
// session in the request context. Endpoints under /apps require a valid
// session; auth endpoints resolve one when present but never reject.
func AuthMiddleware(st store.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionTokenFromRequest(r)
		if token != "" {
			session, err := st.GetSession(r.Context(), token)
			switch {
			case err == nil:
				r = r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, session))
			case errors.Is(err, store.ErrSessionNotFound):
				// expired or unknown token; fall through to the
				// per-endpoint auth check below
			default:
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
		}

		if requiresAuth(r) {
			if _, ok := sessionFromContext(r.Context()); !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFromContext(ctx context.Context) (models.Session, bool) {
	value := ctx.Value(sessionContextKey{})
	if value == nil {
		return models.Session{}, false
	}
	session, ok := value.(models.Session)
	if !ok {
		return models.Session{}, false
	}
	return session, true
}

// sessionTokenFromRequest prefers the session cookie; a bearer token is
// accepted as a fallback for non-browser clients.
func sessionTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func requiresAuth(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return false
	}
	return r.URL.Path == "/apps" || strings.HasPrefix(r.URL.Path, "/apps/")
}
