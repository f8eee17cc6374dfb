//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"

	webster "github.com/babymilooo/webster-backend"
)

func TestLogoutOnOneNodeRevokesEverywhere(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 3, nil)
	c.register(t, "ann@example.com", "correct-horse-1")

	_, pair, err := c.nodes[0].Login(ctx, "ann@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	for i, node := range c.nodes {
		if _, _, err := node.Refresh(ctx, pair.RefreshToken); err != nil {
			t.Fatalf("node %d refresh before logout failed: %v", i, err)
		}
	}

	if err := c.nodes[1].Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	for i, node := range c.nodes {
		if _, _, err := node.Refresh(ctx, pair.RefreshToken); !errors.Is(err, webster.ErrUnauthorized) {
			t.Fatalf("node %d: expected ErrUnauthorized after logout, got %v", i, err)
		}
		if _, err := node.RotateAccess(ctx, "", pair.RefreshToken); !errors.Is(err, webster.ErrUnauthorized) {
			t.Fatalf("node %d: expected rotate to fail after logout, got %v", i, err)
		}
	}
}

func TestConcurrentLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 4, nil)
	c.register(t, "bo@example.com", "correct-horse-2")

	_, pair, err := c.nodes[0].Login(ctx, "bo@example.com", "correct-horse-2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	start := make(chan struct{})
	errs := make(chan error, len(c.nodes)*4)
	var wg sync.WaitGroup
	for i := 0; i < len(c.nodes)*4; i++ {
		wg.Add(1)
		go func(node *webster.Engine) {
			defer wg.Done()
			<-start
			errs <- node.Logout(ctx, pair.RefreshToken)
		}(c.nodes[i%len(c.nodes)])
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Logout failed: %v", err)
		}
	}
	if _, _, err := c.nodes[2].Refresh(ctx, pair.RefreshToken); !errors.Is(err, webster.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestOtherSessionsSurviveLogout(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 2, nil)
	c.register(t, "cy@example.com", "correct-horse-3")

	_, laptop, err := c.nodes[0].Login(ctx, "cy@example.com", "correct-horse-3")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_, phone, err := c.nodes[1].Login(ctx, "cy@example.com", "correct-horse-3")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := c.nodes[0].Logout(ctx, laptop.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, _, err := c.nodes[0].Refresh(ctx, phone.RefreshToken); err != nil {
		t.Fatalf("unrelated session lost: %v", err)
	}
}

func TestRedisOutageFailsClosed(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 2, func(cfg *webster.Config) {
		cfg.Security.EnableLoginThrottle = false
	})
	c.register(t, "di@example.com", "correct-horse-4")

	_, pair, err := c.nodes[0].Login(ctx, "di@example.com", "correct-horse-4")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	c.mr.Close()

	if _, _, err := c.nodes[1].Refresh(ctx, pair.RefreshToken); !errors.Is(err, webster.ErrRevocationUnavailable) {
		t.Fatalf("expected ErrRevocationUnavailable, got %v", err)
	}
	if err := c.nodes[0].Logout(ctx, pair.RefreshToken); !errors.Is(err, webster.ErrRevocationUnavailable) {
		t.Fatalf("expected logout to report ErrRevocationUnavailable, got %v", err)
	}
}
