package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("ECOSETU_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ECOSETU_TEST_REDIS_URL not set")
	}
	c, err := NewClient(context.Background(), Config{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLocker_MutualExclusion(t *testing.T) {
	c := newTestClient(t)
	l := NewLocker(c, 2*time.Second)
	key := uuid.NewString()

	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, key); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while held, got %v", err)
	}

	unlock()

	unlock2, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlock2()
}

func TestReleaseLock_KeepsForeignToken(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := uuid.NewString()

	ok, err := c.AcquireLock(ctx, key, "owner", time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if err := c.ReleaseLock(ctx, key, "intruder"); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, _ = c.AcquireLock(ctx, key, "other", time.Second)
	if ok {
		t.Fatal("lock was released by a non-owner")
	}
	_ = c.ReleaseLock(ctx, key, "owner")
}
