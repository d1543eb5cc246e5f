package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, nil), mr
}

func TestAllowWithinQuota(t *testing.T) {
	l, _ := newLimiter(t)
	ctx := context.Background()

	for i := range 3 {
		d := l.Allow(ctx, "cred-1", 3)
		if !d.Allowed {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Errorf("request %d Remaining = %d, want %d", i+1, d.Remaining, 3-(i+1))
		}
	}

	d := l.Allow(ctx, "cred-1", 3)
	if d.Allowed {
		t.Error("fourth request allowed, want rejected")
	}
	if d.Remaining != 0 {
		t.Errorf("rejected Remaining = %d, want 0", d.Remaining)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want within (0, 1m]", d.RetryAfter)
	}
}

func TestQuotasAreIndependent(t *testing.T) {
	l, _ := newLimiter(t)
	ctx := context.Background()

	if d := l.Allow(ctx, "cred-1", 1); !d.Allowed {
		t.Fatal("cred-1 first request rejected")
	}
	if d := l.Allow(ctx, "cred-1", 1); d.Allowed {
		t.Error("cred-1 second request allowed, want rejected")
	}
	if d := l.Allow(ctx, "cred-2", 1); !d.Allowed {
		t.Error("cred-2 throttled by cred-1's counter")
	}
}

func TestWindowRollover(t *testing.T) {
	l, _ := newLimiter(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return base }

	if d := l.Allow(ctx, "cred-1", 1); !d.Allowed {
		t.Fatal("first request rejected")
	}
	if d := l.Allow(ctx, "cred-1", 1); d.Allowed {
		t.Fatal("second request in same window allowed")
	}

	// Next minute gets a fresh counter.
	l.now = func() time.Time { return base.Add(time.Minute) }
	if d := l.Allow(ctx, "cred-1", 1); !d.Allowed {
		t.Error("request in next window rejected, want allowed")
	}
}

func TestUnlimitedQuota(t *testing.T) {
	l, _ := newLimiter(t)
	for range 100 {
		if d := l.Allow(context.Background(), "cred-1", 0); !d.Allowed {
			t.Fatal("unlimited quota rejected a request")
		}
	}
}

func TestDegradesOpenWhenRedisDown(t *testing.T) {
	l, mr := newLimiter(t)
	mr.Close()

	d := l.Allow(context.Background(), "cred-1", 1)
	if !d.Allowed {
		t.Error("limiter rejected while Redis down, want degrade open")
	}
}
