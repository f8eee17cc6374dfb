//go:build integration
// +build integration

// Package test runs several engines against one identity store and one
// Redis, the way a horizontally scaled deployment does.
package test

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	webster "github.com/babymilooo/webster-backend"
	"github.com/babymilooo/webster-backend/mail"
	"github.com/babymilooo/webster-backend/password"
	"github.com/babymilooo/webster-backend/storage/memory"
	"github.com/redis/go-redis/v9"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

var linkTokenRE = regexp.MustCompile(`/auth/(?:verify-email|password-reset)/([A-Za-z0-9_\-.]+)`)

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatal("no mail sent")
	}
	m := linkTokenRE.FindStringSubmatch(o.sent[len(o.sent)-1].HTML)
	if len(m) != 2 {
		t.Fatal("no token link in last message")
	}
	return m[1]
}

type cluster struct {
	nodes []*webster.Engine
	store *memory.Store
	mail  *outbox
	mr    *miniredis.Miniredis
}

func clusterConfig() webster.Config {
	cfg := webster.DefaultConfig()
	cfg.FrontendURL = "https://app.example.com"
	cfg.Tokens.AccessSecret = []byte("access-secret")
	cfg.Tokens.RefreshSecret = []byte("refresh-secret")
	cfg.Tokens.VerificationSecret = []byte("verification-secret")
	cfg.Tokens.PasswordResetSecret = []byte("reset-secret")
	cfg.EmailVerification.LinkBaseURL = "https://api.example.com"
	cfg.PasswordReset.LinkBaseURL = "https://api.example.com"
	cfg.Password.Argon2 = password.Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return cfg
}

// newCluster builds n engines that share a store, a mailbox and a Redis.
// Each engine gets its own Redis client.
func newCluster(t *testing.T, n int, mutate func(*webster.Config)) *cluster {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := clusterConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	c := &cluster{store: memory.New(), mail: &outbox{}, mr: mr}
	for i := 0; i < n; i++ {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		engine, err := webster.New().
			WithConfig(cfg).
			WithIdentityStore(c.store).
			WithMailer(c.mail).
			WithRedis(rdb).
			Build()
		if err != nil {
			t.Fatalf("Build node %d failed: %v", i, err)
		}
		t.Cleanup(engine.Close)
		c.nodes = append(c.nodes, engine)
	}
	return c
}

func (c *cluster) register(t *testing.T, email, pw string) webster.Identity {
	t.Helper()
	identity, err := c.nodes[0].Register(context.Background(), webster.RegisterRequest{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return identity
}
