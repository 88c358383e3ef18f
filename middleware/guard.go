package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/session"
)

type sessionContextKey struct{}

// SessionFromContext returns the session [Guard] attached to ctx.
func SessionFromContext(ctx context.Context) (*session.AuthSession, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*session.AuthSession)
	return s, ok
}

// Guard serves next only while the client holds a usable session. An
// expired access token is refreshed first; requests are rejected with 401
// when nothing is stored or the refresh fails.
func Guard(client *authflow.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := freshSession(r.Context(), client.Gateway())
			if err != nil || sess == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func freshSession(ctx context.Context, gw *authflow.Gateway) (*session.AuthSession, error) {
	sess, err := gw.CheckSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	return gw.EnsureFreshSession(ctx, sess)
}
