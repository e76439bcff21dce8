package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newCacheForTest(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, NewRedisCache(client, 1, 16)
}

func TestAccessCache_PutGetInvalidate(t *testing.T) {
	_, rc := newCacheForTest(t)
	ac := NewAccessCache(rc, time.Minute)
	ctx := context.Background()

	if _, ok, err := ac.Get(ctx, "s1", "u1"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	want := &ParticipantAccess{Role: "PLAYER", AssignedCharacterId: "hero"}
	if err := ac.Put(ctx, "s1", "u1", want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := ac.Get(ctx, "s1", "u1")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if *got != *want {
		t.Fatalf("got %+v want %+v", got, want)
	}

	if err := ac.Invalidate(ctx, "s1", "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := ac.Get(ctx, "s1", "u1"); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestAccessCache_TTLAndSessionInvalidate(t *testing.T) {
	server, rc := newCacheForTest(t)
	ac := NewAccessCache(rc, time.Minute)
	ctx := context.Background()

	_ = ac.Put(ctx, "s1", "u1", &ParticipantAccess{Role: "DM"})
	_ = ac.Put(ctx, "s1", "u2", &ParticipantAccess{Role: "PLAYER"})
	_ = ac.Put(ctx, "s2", "u1", &ParticipantAccess{Role: "PLAYER"})

	if err := ac.InvalidateSession(ctx, "s1"); err != nil {
		t.Fatalf("invalidate session: %v", err)
	}
	if _, ok, _ := ac.Get(ctx, "s1", "u2"); ok {
		t.Fatalf("s1 entries should be gone")
	}
	if _, ok, _ := ac.Get(ctx, "s2", "u1"); !ok {
		t.Fatalf("s2 entry should survive")
	}

	server.FastForward(2 * time.Minute)
	if _, ok, _ := ac.Get(ctx, "s2", "u1"); ok {
		t.Fatalf("entry should expire after ttl")
	}
}

func TestAccessCache_GarbageIsMiss(t *testing.T) {
	_, rc := newCacheForTest(t)
	ac := NewAccessCache(rc, time.Minute)
	ctx := context.Background()

	if err := rc.Set(ctx, accessKey("s1", "u1"), "{not json", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := ac.Get(ctx, "s1", "u1"); ok || err != nil {
		t.Fatalf("garbage should be a miss, ok=%v err=%v", ok, err)
	}
}

func TestAccessCache_PutAsyncDrainsOnClose(t *testing.T) {
	server := miniredis.RunT(t)
	rc := NewRedisCache(redis.NewClient(&redis.Options{Addr: server.Addr()}), 2, 8)
	ac := NewAccessCache(rc, time.Minute)

	for _, u := range []string{"u1", "u2", "u3"} {
		ac.PutAsync("s1", u, &ParticipantAccess{Role: "PLAYER"})
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, u := range []string{"u1", "u2", "u3"} {
		if !server.Exists(accessKey("s1", u)) {
			t.Fatalf("%s should be written before close returns", u)
		}
	}
	// 关闭后提交的任务被丢弃
	ac.PutAsync("s1", "late", &ParticipantAccess{Role: "PLAYER"})
	if server.Exists(accessKey("s1", "late")) {
		t.Fatal("task after close should be dropped")
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
