package authflow

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authflow/session"
	"github.com/MrEthical07/authflow/transport"
)

type recordedCall struct {
	Method  string
	Path    string
	Payload any
	Bearer  string
	Headers http.Header
}

type routeFunc func(ctx context.Context, call recordedCall) (*transport.Response, error)

// fakeTransport routes requests by "METHOD path". Unrouted requests fail
// with a 404 StatusError.
type fakeTransport struct {
	mu     sync.Mutex
	routes map[string]routeFunc
	calls  []recordedCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{routes: make(map[string]routeFunc)}
}

func (f *fakeTransport) handle(method, path string, fn routeFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
}

func (f *fakeTransport) reply(method, path string, data any) {
	f.handle(method, path, func(context.Context, recordedCall) (*transport.Response, error) {
		return okResponse(data), nil
	})
}

func (f *fakeTransport) fail(method, path string, status int, message string) {
	f.handle(method, path, func(_ context.Context, call recordedCall) (*transport.Response, error) {
		return nil, &transport.StatusError{
			Method:   call.Method,
			Path:     call.Path,
			Status:   status,
			Envelope: transport.ErrorEnvelope{Status: status, Message: message, Path: call.Path},
		}
	})
}

func (f *fakeTransport) Post(ctx context.Context, path string, payload any, opts ...transport.RequestOption) (*transport.Response, error) {
	return f.dispatch(ctx, http.MethodPost, path, payload, opts)
}

func (f *fakeTransport) Get(ctx context.Context, path string, opts ...transport.RequestOption) (*transport.Response, error) {
	return f.dispatch(ctx, http.MethodGet, path, nil, opts)
}

func (f *fakeTransport) dispatch(ctx context.Context, method, path string, payload any, opts []transport.RequestOption) (*transport.Response, error) {
	call := recordedCall{Method: method, Path: path, Payload: payload}
	captureOptions(&call, opts)

	f.mu.Lock()
	f.calls = append(f.calls, call)
	fn := f.routes[method+" "+path]
	f.mu.Unlock()

	if fn == nil {
		return nil, &transport.StatusError{Method: method, Path: path, Status: http.StatusNotFound}
	}
	return fn(ctx, call)
}

func (f *fakeTransport) callsTo(path string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// captureOptions records the headers opts would set.
func captureOptions(call *recordedCall, opts []transport.RequestOption) {
	req, _ := http.NewRequest(http.MethodGet, "http://fake.invalid", nil)
	transport.ApplyOptions(req, opts...)
	call.Bearer = strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	call.Headers = req.Header.Clone()
}

func okResponse(data any) *transport.Response {
	body, _ := json.Marshal(map[string]any{"status": 200, "message": "ok", "data": data})
	return &transport.Response{Status: http.StatusOK, Header: http.Header{}, Body: body}
}

func mintToken(t testing.TB, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-signing-key-test-signing-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

type testClient struct {
	client    *Client
	transport *fakeTransport
	storage   *session.MemoryStorage
}

func newTestClient(t testing.TB, mutate func(*Config)) *testClient {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Millisecond
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	ft := newFakeTransport()
	storage := session.NewMemoryStorage()
	client, err := New().
		WithConfig(cfg).
		WithTransport(ft).
		WithStorage(storage).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)

	return &testClient{client: client, transport: ft, storage: storage}
}

func (tc *testClient) storedRaw(t *testing.T) (string, bool) {
	t.Helper()
	raw, ok, err := tc.storage.GetItem(context.Background(), session.DefaultKey)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	return raw, ok
}

func (tc *testClient) seed(t testing.TB, s *session.AuthSession) {
	t.Helper()
	if err := tc.client.Store().SaveSession(context.Background(), s); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}
