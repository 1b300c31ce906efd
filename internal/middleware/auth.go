package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/bryanwahyu/pattern-analyzer/internal/auth"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
)

type contextKey string

const userKey contextKey = "user"

// Policy controls what Authenticate does with a missing or bad token.
type Policy string

const (
	PolicyRequired Policy = "required" // 401 without a valid token
	PolicyOptional Policy = "optional" // anonymous when missing or invalid
	PolicyNone     Policy = "none"     // token ignored
)

// TokenVerifier is satisfied by *auth.Manager.
type TokenVerifier interface {
	Verify(token string) (*auth.User, error)
}

// Authenticate reads the bearer token from the Authorization header, or the
// token query parameter for clients that cannot set headers (WebSocket).
func Authenticate(v TokenVerifier, policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy == PolicyNone {
				next.ServeHTTP(w, r)
				return
			}

			token := tokenFromRequest(r)
			if token == "" {
				if policy == PolicyRequired {
					unauthorized(w, "Not authenticated")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := v.Verify(token)
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("token rejected")
				if policy == PolicyRequired {
					unauthorized(w, "Invalid authentication credentials")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// WithUser stores u in ctx, along with its uid for log lines.
func WithUser(ctx context.Context, u *auth.User) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return logging.ContextWithUserID(ctx, u.UID)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	u, ok := ctx.Value(userKey).(*auth.User)
	return u, ok && u != nil
}
