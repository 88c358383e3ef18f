//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/session"
)

func TestRedisCompatSessionTTL(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			rdb := mode.setup(t)
			client := newClient(t, newAuthAPI(t), rdb, func(cfg *authflow.Config) {
				cfg.Storage.RedisPrefix = "ttl"
				cfg.Storage.TTL = 30 * time.Minute
			})

			if _, err := client.Gateway().Login(ctx, alice()); err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			ttl, err := rdb.TTL(ctx, "ttl:"+session.DefaultKey).Result()
			if err != nil {
				t.Fatalf("TTL: %v", err)
			}
			if ttl <= 0 || ttl > 30*time.Minute {
				t.Fatalf("unexpected TTL %v", ttl)
			}
		})
	}
}

func TestRedisCompatSharedRateLimit(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			rdb := mode.setup(t)
			api := newAuthAPI(t)
			limit := func(cfg *authflow.Config) {
				cfg.RateLimit.MaxAttempts = 2
				cfg.RateLimit.Window = time.Minute
			}
			first := newClient(t, api, rdb, limit)
			second := newClient(t, api, rdb, limit)

			wrong := authflow.Credentials{Email: "alice@example.com", Password: "nope"}
			_, _ = first.Gateway().Login(ctx, wrong)
			_, _ = second.Gateway().Login(ctx, wrong)

			_, err := first.Gateway().Login(ctx, alice())
			var ae *authflow.AuthError
			if !errors.As(err, &ae) || ae.Code != authflow.CodeRateLimited {
				t.Fatalf("expected shared limit to deny, got %v", err)
			}
			if got := api.count("/auth/login"); got != 2 {
				t.Fatalf("expected 2 login POSTs, got %d", got)
			}
		})
	}
}

func TestRedisCompatMachineLifecycle(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			rdb := mode.setup(t)
			api := newAuthAPI(t)

			m := newClient(t, api, rdb, nil).NewMachine()
			if err := m.Start(ctx); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			defer m.Stop()
			if _, err := m.WaitForState(ctx, authflow.StateLoginIdle); err != nil {
				t.Fatalf("expected login state: %v", err)
			}
			m.Send(authflow.LoginEvent("alice@example.com", "correct-horse"))
			if _, err := m.WaitForState(ctx, authflow.StateAuthorized); err != nil {
				t.Fatalf("expected authorized: %v", err)
			}

			// A second machine over the same Redis restores the session.
			restored := newClient(t, api, rdb, nil).NewMachine()
			if err := restored.Start(ctx); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			defer restored.Stop()
			snap, err := restored.WaitForState(ctx, authflow.StateAuthorized)
			if err != nil {
				t.Fatalf("expected restored session: %v", err)
			}
			if snap.Context.Session.Profile.Email != "alice@example.com" {
				t.Fatalf("unexpected profile %+v", snap.Context.Session.Profile)
			}
		})
	}
}
