package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/session"
)

func main() {
	var (
		clients     = flag.Int("clients", 64, "number of independent clients (devices) to simulate")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (check + refresh)")
		latency     = flag.Duration("latency", 2*time.Millisecond, "artificial latency of the mock auth API")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "session key prefix")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	rdb, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	api := &mockAPI{latency: *latency}
	baseURL, stop, err := api.serve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock api: %v\n", err)
		os.Exit(1)
	}
	defer stop()

	pool := make([]*authflow.Client, *clients)
	fmt.Printf("seeding %d client sessions...\n", *clients)
	startSeed := time.Now()
	for i := range pool {
		c, err := buildClient(baseURL, rdb, fmt.Sprintf("%s:%d", *prefix, i))
		if err != nil {
			fmt.Fprintf(os.Stderr, "build client: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()

		sess := session.CreateSession(api.token(), refreshTokenFor(i), &session.UserProfile{
			ID:    fmt.Sprintf("u%d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
		})
		if err := c.Store().SaveSession(ctx, sess); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
		pool[i] = c
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	checkStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := pool[r.Intn(len(pool))].Gateway().CheckSession(ctx)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		idx := r.Intn(len(pool))
		_, err := pool[idx].Gateway().Refresh(ctx, refreshTokenFor(idx))
		return err
	})

	var refreshed, deduplicated uint64
	for _, c := range pool {
		snap := c.MetricsSnapshot()
		refreshed += snap.Counters[authflow.MetricRefreshSuccess]
		deduplicated += snap.Counters[authflow.MetricRefreshDeduplicated]
	}

	fmt.Println("---- results ----")
	printStats("check", checkStats)
	printStats("refresh", refreshStats)
	fmt.Printf("refresh POSTs=%d stored=%d deduplicated=%d\n", api.refreshes.Load(), refreshed, deduplicated)
}

func buildClient(baseURL string, rdb redis.UniversalClient, prefix string) (*authflow.Client, error) {
	cfg := authflow.DefaultConfig()
	cfg.Transport.BaseURL = baseURL
	cfg.Storage.Backend = authflow.StorageRedis
	cfg.Storage.RedisPrefix = prefix
	cfg.Storage.TTL = 24 * time.Hour
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = true
	return authflow.New().WithConfig(cfg).WithRedis(rdb).Build()
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func refreshTokenFor(i int) string {
	return fmt.Sprintf("refresh-%d", i)
}

// mockAPI answers the refresh and profile endpoints after a fixed delay.
type mockAPI struct {
	latency   time.Duration
	refreshes atomic.Int64
}

var signingKey = []byte("authflow-loadtest")

func (a *mockAPI) token() string {
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "loadtest",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().UnixNano(),
	}).SignedString(signingKey)
	return tok
}

func (a *mockAPI) serve() (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: a, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return "http://" + ln.Addr().String(), func() { _ = srv.Close() }, nil
}

func (a *mockAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	time.Sleep(a.latency)

	var data any
	switch r.URL.Path {
	case "/auth/refresh-token":
		a.refreshes.Add(1)
		data = map[string]any{"accessToken": a.token()}
	case "/auth/me":
		data = map[string]any{"id": "loadtest", "email": "loadtest@example.com"}
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": http.StatusNotFound, "message": "Not found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": http.StatusOK, "message": "ok", "data": data})
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
