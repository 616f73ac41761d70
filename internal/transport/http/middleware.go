package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/StorefrontFeed/internal/session"
)

// SessionMiddleware decodes the access token of every request into a
// session.State stored in the request context. The token comes from a
// Bearer Authorization header or, failing that, the session cookie.
// An undecodable token yields the logged-out state.
func SessionMiddleware(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" && cookieName != "" {
				if c, err := r.Cookie(cookieName); err == nil {
					token = c.Value
				}
			}

			s, err := session.Decode(token)
			if err != nil {
				slog.Debug("Ignoring malformed session token", "error", err)
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
