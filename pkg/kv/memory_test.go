package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get: %q, %v", got, err)
	}

	if err := s.Delete(ctx, "k", "other"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected key to be gone, got %v", err)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "k", []byte("v"), time.Minute)

	now = now.Add(59 * time.Second)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("expected key alive before ttl, got %v", err)
	}

	now = now.Add(time.Second)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected key expired at ttl, got %v", err)
	}
}

func TestMemoryStore_SetNX(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, _ := s.SetNX(ctx, "lock", []byte("1"), time.Minute)
	if !ok {
		t.Fatal("expected first SetNX to succeed")
	}
	ok, _ = s.SetNX(ctx, "lock", []byte("2"), time.Minute)
	if ok {
		t.Fatal("expected second SetNX to fail")
	}
}

func TestMemoryStore_Incr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "count", time.Minute)
		if err != nil || n != want {
			t.Fatalf("Incr: got %d, %v; want %d", n, err, want)
		}
	}

	// TTL is fixed at creation, later increments do not extend it.
	now = now.Add(time.Minute)
	n, _ := s.Incr(ctx, "count", time.Minute)
	if n != 1 {
		t.Fatalf("expected counter to restart after expiry, got %d", n)
	}

	_ = s.Set(ctx, "text", []byte("abc"), 0)
	if _, err := s.Incr(ctx, "text", 0); !errors.Is(err, ErrNotInteger) {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}
}
