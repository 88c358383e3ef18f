package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/session"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authflow.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Retry.MaxAttempts != authflow.DefaultConfig().Retry.MaxAttempts {
		t.Fatal("expected defaults without a file")
	}
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := writeFile(t, `
[transport]
base_url = "https://auth.example.com"
timeout = "5s"

[retry]
max_attempts = 2

[rate_limit]
window = "1m"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Transport.BaseURL != "https://auth.example.com" {
		t.Fatalf("unexpected base url %q", cfg.Transport.BaseURL)
	}
	if cfg.Transport.Timeout != 5*time.Second || cfg.RateLimit.Window != time.Minute {
		t.Fatalf("unexpected durations %v %v", cfg.Transport.Timeout, cfg.RateLimit.Window)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Fatalf("expected max_attempts 2, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialDelay != authflow.DefaultConfig().Retry.InitialDelay {
		t.Fatal("unset keys must keep defaults")
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := writeFile(t, `
[transport]
base_url = "ftp://auth.example.com"
`)
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected invalid base url to be rejected")
	}

	if _, err := loadConfig(writeFile(t, "not = [valid")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	cfg := authflow.DefaultConfig()
	cfg.Transport.BaseURL = "https://auth.example.com"

	var buf bytes.Buffer
	if err := writeConfig(&buf, cfg); err != nil {
		t.Fatalf("writeConfig failed: %v", err)
	}
	path := writeFile(t, buf.String())
	got, err := loadConfig(path)
	if err != nil {
		t.Fatalf("reload failed: %v\n%s", err, buf.String())
	}
	if got.Transport.BaseURL != cfg.Transport.BaseURL || got.Retry.MaxDelay != cfg.Retry.MaxDelay {
		t.Fatalf("round trip changed config: %+v", got)
	}
}

// mockAPI serves the auth endpoints the CLI drives.
type mockAPI struct {
	mu       sync.Mutex
	otp      string
	password string
}

func (a *mockAPI) currentPassword() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.password
}

func (a *mockAPI) token() string {
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("mock-api-signing-key"))
	return tok
}

func (a *mockAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	reply := func(status int, message string, data any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "message": message, "data": data})
	}

	switch r.Method + " " + r.URL.Path {
	case "POST /auth/login":
		if body["password"] != a.password {
			reply(http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		reply(http.StatusOK, "ok", map[string]any{
			"accessToken":  a.token(),
			"refreshToken": "r1",
			"user":         map[string]any{"id": "u1", "email": body["email"], "name": "Alice"},
		})
	case "POST /auth/register", "POST /auth/otp/request", "POST /auth/register/complete":
		reply(http.StatusOK, "ok", nil)
	case "POST /auth/password/reset/complete":
		a.password = body["newPassword"]
		reply(http.StatusOK, "ok", nil)
	case "POST /auth/otp/verify":
		if body["otp"] != a.otp {
			reply(http.StatusBadRequest, "Invalid OTP", nil)
			return
		}
		reply(http.StatusOK, "ok", map[string]any{"actionToken": "act-1"})
	case "POST /auth/refresh-token":
		reply(http.StatusOK, "ok", map[string]any{"accessToken": a.token()})
	case "GET /auth/me":
		reply(http.StatusOK, "ok", map[string]any{"id": "u1", "email": "alice@example.com", "name": "Alice"})
	default:
		reply(http.StatusNotFound, "Not found", nil)
	}
}

type cliHarness struct {
	storage *session.MemoryStorage
	baseURL string
	out     *bytes.Buffer
}

func newHarness(t *testing.T, api *mockAPI) *cliHarness {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return &cliHarness{storage: session.NewMemoryStorage(), baseURL: srv.URL, out: &bytes.Buffer{}}
}

// exec runs one CLI command against shared storage, like separate
// invocations sharing a Redis.
func (h *cliHarness) exec(t *testing.T, stdin string, cmd string, args ...string) error {
	t.Helper()
	cfg := authflow.DefaultConfig()
	cfg.Transport.BaseURL = h.baseURL
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond

	client, err := authflow.New().WithConfig(cfg).WithStorage(h.storage).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.out.Reset()
	c := &cli{client: client, in: strings.NewReader(stdin), out: h.out}
	return c.run(ctx, cmd, args)
}

func TestCLILoginStatusLogout(t *testing.T) {
	h := newHarness(t, &mockAPI{password: "pw"})

	if err := h.exec(t, "", "status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(h.out.String(), "unauthorized.login.idle") {
		t.Fatalf("expected login state, got %q", h.out.String())
	}

	if err := h.exec(t, "", "login", "alice@example.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(h.out.String(), "state: authorized") {
		t.Fatalf("expected authorized, got %q", h.out.String())
	}

	if err := h.exec(t, "", "status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(h.out.String(), "Alice <alice@example.com>") {
		t.Fatalf("expected restored profile, got %q", h.out.String())
	}

	if err := h.exec(t, "", "refresh"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if err := h.exec(t, "", "logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, ok, _ := h.storage.GetItem(context.Background(), session.DefaultKey); ok {
		t.Fatal("expected storage cleared")
	}
}

func TestCLILoginFailure(t *testing.T) {
	h := newHarness(t, &mockAPI{password: "pw"})

	err := h.exec(t, "", "login", "alice@example.com", "wrong")
	var ae *authflow.AuthError
	if !errors.As(err, &ae) || ae.Code != authflow.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCLIRegisterRetriesOTP(t *testing.T) {
	h := newHarness(t, &mockAPI{otp: "123456", password: "secret"})

	if err := h.exec(t, "000000\n123456\n", "register", "new@example.com", "secret"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	out := h.out.String()
	if !strings.Contains(out, "Invalid OTP") || !strings.Contains(out, "state: authorized") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCLIReset(t *testing.T) {
	api := &mockAPI{otp: "654321", password: "old"}
	h := newHarness(t, api)

	if err := h.exec(t, "654321\nnew-pw\n", "reset", "alice@example.com"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if got := api.currentPassword(); got != "new-pw" {
		t.Fatalf("expected password changed, got %q", got)
	}
	if !strings.Contains(h.out.String(), "state: authorized") {
		t.Fatalf("expected login after reset, got %q", h.out.String())
	}
}

func TestCLIUsage(t *testing.T) {
	h := newHarness(t, &mockAPI{})
	if err := h.exec(t, "", "login", "only-email"); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := h.exec(t, "", "frobnicate"); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestOpenRedisInMemory(t *testing.T) {
	rdb, cleanup, err := openRedis("", true)
	if err != nil {
		t.Fatalf("openRedis failed: %v", err)
	}
	defer cleanup()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}
