package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
)

func skipIfNoRedis(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, DB: 15, PoolSize: 2})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetMissingKeyIsNil(t *testing.T) {
	c := skipIfNoRedis(t)
	_, err := c.Get(context.Background(), "series:test:missing")
	if !IsNilError(err) {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestFlushByPattern(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	for _, k := range []string{"series:test:a", "series:test:b", "other:test:c"} {
		if err := c.Set(ctx, k, "v", time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	t.Cleanup(func() { c.Del(context.Background(), "other:test:c") })

	n, err := c.FlushByPattern(ctx, "series:test:*")
	if err != nil {
		t.Fatalf("FlushByPattern: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	if v, err := c.Get(ctx, "other:test:c"); err != nil || v != "v" {
		t.Errorf("unrelated key disturbed: %q %v", v, err)
	}
}

func TestIsNilErrorRejectsOthers(t *testing.T) {
	if IsNilError(context.Canceled) {
		t.Error("context.Canceled is not a redis nil")
	}
	if !IsNilError(Nil) {
		t.Error("Nil must be recognised")
	}
}
