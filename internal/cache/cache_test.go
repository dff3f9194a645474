package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisCache(mr.Addr(), "", 0)
}

func TestGetWithCached_MissThenHit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	loads := 0
	load := func(ctx context.Context) (string, bool, error) {
		loads++
		return "value", true, nil
	}

	val, found, err := GetWithCached(ctx, c, "key1", time.Minute, load)
	if err != nil || !found || val != "value" {
		t.Fatalf("unexpected first lookup: val=%q found=%v err=%v", val, found, err)
	}

	val, found, err = GetWithCached(ctx, c, "key1", time.Minute, load)
	if err != nil || !found || val != "value" {
		t.Fatalf("unexpected cached lookup: val=%q found=%v err=%v", val, found, err)
	}
	if loads != 1 {
		t.Fatalf("expected load to run once, ran %d times", loads)
	}
}

func TestGetWithCached_CachesNullOnMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	loads := 0
	load := func(ctx context.Context) (string, bool, error) {
		loads++
		return "", false, nil
	}

	_, found, err := GetWithCached(ctx, c, "missing", time.Minute, load)
	if err != nil || found {
		t.Fatalf("expected not found, got found=%v err=%v", found, err)
	}

	_, found, err = GetWithCached(ctx, c, "missing", time.Minute, load)
	if err != nil || found {
		t.Fatalf("expected cached not found, got found=%v err=%v", found, err)
	}
	if loads != 1 {
		t.Fatalf("expected load to run once due to null caching, ran %d times", loads)
	}
}

func TestTryLock_MutualExclusion(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "lock1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first lock to succeed: ok=%v err=%v", ok, err)
	}

	ok, err = c.TryLock(ctx, "lock1", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second lock to fail while held: ok=%v err=%v", ok, err)
	}

	if err := c.Unlock(ctx, "lock1"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	ok, err = c.TryLock(ctx, "lock1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock to succeed after unlock: ok=%v err=%v", ok, err)
	}
}
