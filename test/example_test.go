package test

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow"
)

// ExampleNew demonstrates client construction with a Redis-backed session.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := authflow.DefaultConfig()
	cfg.Transport.BaseURL = "https://auth.example.com"
	cfg.Storage.Backend = authflow.StorageRedis

	client, _ := authflow.New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	_ = client
}

// ExampleGateway_Login shows a login call and classified error handling.
func ExampleGateway_Login() {
	var client *authflow.Client
	_, err := client.Gateway().Login(context.Background(), authflow.Credentials{
		Email:    "alice@example.com",
		Password: "password",
	})
	var ae *authflow.AuthError
	if errors.As(err, &ae) {
		fmt.Println(ae.Code, ae.Message)
	}
}

// ExampleMachine shows the machine driving a login from the UI side.
func ExampleMachine() {
	var client *authflow.Client
	ctx := context.Background()

	m := client.NewMachine()
	_ = m.Start(ctx)
	defer m.Stop()

	m.Send(authflow.LoginEvent("alice@example.com", "password"))
	snap, _ := m.WaitForState(ctx, authflow.StateAuthorized)
	_ = snap
}

// ExampleClient_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleClient_MetricsSnapshot() {
	var client *authflow.Client
	snapshot := client.MetricsSnapshot()
	_ = snapshot.Counters[authflow.MetricLoginSuccess]
}
