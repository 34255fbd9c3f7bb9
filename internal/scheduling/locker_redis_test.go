package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, 2*time.Second)
	l.retry = 5 * time.Millisecond
	l.wait = 100 * time.Millisecond
	return l, mr
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()
	key := l.prefix + "doc|2025-06-01|10:00"

	release, err := l.Lock(ctx, "doc|2025-06-01|10:00")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("lock key not set")
	}
	if ttl := mr.TTL(key); ttl != 2*time.Second {
		t.Errorf("ttl = %v, want 2s", ttl)
	}

	release()
	if mr.Exists(key) {
		t.Fatal("lock key still present after release")
	}

	release, err = l.Lock(ctx, "doc|2025-06-01|10:00")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	release()
}

func TestRedisLocker_ContentionTimesOut(t *testing.T) {
	l, _ := newRedisLocker(t)
	ctx := context.Background()

	release, err := l.Lock(ctx, "slot")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer release()

	start := time.Now()
	if _, err := l.Lock(ctx, "slot"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < l.wait {
		t.Errorf("gave up after %v, before the %v wait budget", elapsed, l.wait)
	}

	other, err := l.Lock(ctx, "other-slot")
	if err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
	other()
}

func TestRedisLocker_ContextCancel(t *testing.T) {
	l, _ := newRedisLocker(t)
	l.wait = 5 * time.Second

	release, err := l.Lock(context.Background(), "slot")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "slot"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestRedisLocker_ReleaseOnlyOwnLock(t *testing.T) {
	l, mr := newRedisLocker(t)
	key := l.prefix + "slot"

	release, err := l.Lock(context.Background(), "slot")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	// The lock expired and another instance took the slot.
	mr.FastForward(3 * time.Second)
	if mr.Exists(key) {
		t.Fatal("lock did not expire")
	}
	if err := mr.Set(key, "another-holder"); err != nil {
		t.Fatal(err)
	}

	release()
	got, err := mr.Get(key)
	if err != nil {
		t.Fatalf("other holder's lock removed: %v", err)
	}
	if got != "another-holder" {
		t.Errorf("lock value = %q, want another-holder", got)
	}
}
