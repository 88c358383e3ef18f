//go:build integration
// +build integration

package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the Redis backends to test. miniredis is always
// available; a real server is added when REDIS_ADDR is set and a cluster
// when REDIS_CLUSTER_ADDRS is set (comma-separated).
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{{
		name: "miniredis",
		setup: func(t *testing.T) redis.UniversalClient {
			t.Helper()
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis: %v", err)
			}
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() {
				_ = rdb.Close()
				mr.Close()
			})
			return rdb
		},
	}}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ping(t, rdb)
				rdb.FlushDB(context.Background())
				t.Cleanup(func() {
					rdb.FlushDB(context.Background())
					_ = rdb.Close()
				})
				return rdb
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: strings.Split(addrs, ",")})
				ping(t, rdb)
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		})
	}
	return modes
}

func ping(t *testing.T, rdb redis.UniversalClient) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("cannot connect to Redis: %v", err)
	}
}

// authAPI is an httptest auth server counting calls per path.
type authAPI struct {
	*httptest.Server

	mu       sync.Mutex
	password string
	delay    time.Duration
	rotate   bool
	hits     map[string]*atomic.Int64
}

var signingKey = []byte("integration-signing-key")

func newAuthAPI(t *testing.T) *authAPI {
	t.Helper()
	a := &authAPI{password: "correct-horse", hits: map[string]*atomic.Int64{}}
	for _, p := range []string{"/auth/login", "/auth/refresh-token", "/auth/me"} {
		a.hits[p] = &atomic.Int64{}
	}
	a.Server = httptest.NewServer(a)
	t.Cleanup(a.Server.Close)
	return a
}

func (a *authAPI) setDelay(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = d
}

func (a *authAPI) count(path string) int64 {
	return a.hits[path].Load()
}

func accessToken(ttl time.Duration) string {
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(ttl).Unix(),
		"jti": time.Now().Format(time.RFC3339Nano),
	}).SignedString(signingKey)
	return tok
}

func (a *authAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	delay, password, rotate := a.delay, a.password, a.rotate
	a.mu.Unlock()

	if c, ok := a.hits[r.URL.Path]; ok {
		c.Add(1)
	}
	time.Sleep(delay)

	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Path {
	case "/auth/login":
		if body["password"] != password {
			writeEnvelope(w, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "ok", map[string]any{
			"accessToken":  accessToken(time.Hour),
			"refreshToken": "r1",
			"user":         map[string]any{"id": "u1", "email": body["email"], "name": "Alice"},
		})
	case "/auth/refresh-token":
		data := map[string]any{"accessToken": accessToken(time.Hour)}
		if rotate {
			data["refreshToken"] = "r2"
		}
		writeEnvelope(w, http.StatusOK, "ok", data)
	case "/auth/me":
		writeEnvelope(w, http.StatusOK, "ok", map[string]any{"id": "u1", "email": "alice@example.com", "name": "Alice"})
	default:
		writeEnvelope(w, http.StatusNotFound, "Not found", nil)
	}
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "message": message, "data": data})
}

// newClient builds a client over rdb for both storage and rate limiting.
func newClient(t *testing.T, api *authAPI, rdb redis.UniversalClient, mutate func(*authflow.Config)) *authflow.Client {
	t.Helper()
	cfg := authflow.DefaultConfig()
	cfg.Transport.BaseURL = api.URL
	cfg.Storage.Backend = authflow.StorageRedis
	cfg.Storage.TTL = time.Hour
	cfg.RateLimit.Backend = authflow.StorageRedis
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := authflow.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func alice() authflow.Credentials {
	return authflow.Credentials{Email: "alice@example.com", Password: "correct-horse"}
}
