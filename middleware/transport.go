package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authflow"
)

// ErrNotReplayable is returned when a request rejected with 401 cannot be
// sent again because its body cannot be rewound.
var ErrNotReplayable = errors.New("request body not replayable")

// BearerTransport is an [http.RoundTripper] that sets the Authorization
// header from the stored session.
type BearerTransport struct {
	gateway *authflow.Gateway
	base    http.RoundTripper
}

// Transport wraps base (http.DefaultTransport when nil) so every request
// carries the client's access token.
//
// Requests go out unauthenticated when no session is stored; the server's
// answer is returned as is. A 401 triggers one refresh and one retry.
func Transport(client *authflow.Client, base http.RoundTripper) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BearerTransport{gateway: client.Gateway(), base: base}
}

// RoundTrip implements [http.RoundTripper].
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	sess, err := freshSession(ctx, t.gateway)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return t.base.RoundTrip(req)
	}

	resp, err := t.base.RoundTrip(withBearer(req, sess.AccessToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || sess.RefreshToken == "" {
		return resp, err
	}

	retry, err := rewind(req)
	if err != nil {
		return resp, nil
	}
	refreshed, err := t.gateway.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return resp, nil
	}
	_ = resp.Body.Close()
	return t.base.RoundTrip(withBearer(retry, refreshed.AccessToken))
}

func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

// rewind returns a copy of req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, ErrNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.Body = body
	return out, nil
}
