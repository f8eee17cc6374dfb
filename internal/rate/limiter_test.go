package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestWindow(t *testing.T, limit int, period time.Duration) (*Window, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewWindow(rdb, "t", limit, period), mr
}

func TestWindowHitLimitsAndExpires(t *testing.T) {
	w, mr := newTestWindow(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := w.Hit(ctx, "k"); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
	}
	if err := w.Hit(ctx, "k"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := w.Hit(ctx, "other"); err != nil {
		t.Fatalf("keys must be independent: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := w.Hit(ctx, "k"); err != nil {
		t.Fatalf("expected new window after expiry: %v", err)
	}
}

func TestWindowCheckAndReset(t *testing.T) {
	w, _ := newTestWindow(t, 1, time.Minute)
	ctx := context.Background()

	if err := w.Check(ctx, "k"); err != nil {
		t.Fatalf("fresh key should pass: %v", err)
	}
	_ = w.Hit(ctx, "k")
	if err := w.Check(ctx, "k"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected exhausted budget, got %v", err)
	}
	if err := w.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := w.Check(ctx, "k"); err != nil {
		t.Fatalf("expected reset budget: %v", err)
	}
}

func TestWindowDisabled(t *testing.T) {
	var nilWindow *Window
	if err := nilWindow.Hit(context.Background(), "k"); err != nil {
		t.Fatalf("nil window must be a no-op: %v", err)
	}

	w, mr := newTestWindow(t, 0, time.Minute)
	for i := 0; i < 10; i++ {
		if err := w.Hit(context.Background(), "k"); err != nil {
			t.Fatalf("disabled window limited: %v", err)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatal("disabled window must not write keys")
	}
}

func TestWindowRedisDown(t *testing.T) {
	w, mr := newTestWindow(t, 1, time.Minute)
	mr.Close()
	if err := w.Hit(context.Background(), "k"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
