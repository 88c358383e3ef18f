package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/metrics/export/prometheus"
)

const usage = `usage: authflow [flags] <command> [args]

commands:
  status                         restore the stored session and report the state
  login <email> <password>       log in and store the session
  logout                         remove the stored session
  refresh                        refresh the stored access token
  register <email> <password>    register, then prompt for the emailed OTP
  reset <email>                  reset a password, prompting for OTP and new password
  complete <actionToken> <password> [email]
                                 complete a registration from an emailed link
  config                         print the effective configuration

flags:
`

func main() {
	var (
		configPath  = flag.String("config", "", "TOML config file")
		baseURL     = flag.String("base-url", "", "auth API base URL; overrides the config file")
		redisAddr   = flag.String("redis-addr", "", "redis address for session storage; REDIS_ADDR is used when empty")
		memoryRedis = flag.Bool("memory-redis", false, "use an in-process miniredis for storage")
		timeout     = flag.Duration("timeout", 30*time.Second, "overall command timeout")
		showMetrics = flag.Bool("metrics", false, "print metrics in Prometheus format after the command")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authflow: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Transport.BaseURL = *baseURL
	}
	if *showMetrics {
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
	}

	if flag.Arg(0) == "config" {
		if err := writeConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "authflow: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rdb, cleanup, err := openRedis(*redisAddr, *memoryRedis)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authflow: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if rdb != nil {
		cfg.Storage.Backend = authflow.StorageRedis
		cfg.RateLimit.Backend = authflow.StorageRedis
	}
	client, err := authflow.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "authflow: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cli := &cli{client: client, in: os.Stdin, out: os.Stdout}
	runErr := cli.run(ctx, flag.Arg(0), flag.Args()[1:])

	client.Close()
	if *showMetrics {
		fmt.Fprint(os.Stderr, prometheus.NewPrometheusExporter(client).Render())
	}

	if runErr != nil {
		var ae *authflow.AuthError
		if errors.As(runErr, &ae) {
			fmt.Fprintf(os.Stderr, "authflow: %s (%s)\n", ae.Message, ae.Code)
		} else {
			fmt.Fprintf(os.Stderr, "authflow: %v\n", runErr)
		}
		if errors.Is(runErr, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// openRedis returns nil when no Redis is configured.
func openRedis(addr string, inMemory bool) (redis.UniversalClient, func(), error) {
	if inMemory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		return nil, func() {}, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	return client, func() { _ = client.Close() }, nil
}
