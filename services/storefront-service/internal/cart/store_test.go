package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := s.Load(ctx, "session-1")
	if err != nil {
		t.Fatalf("load unknown session: %v", err)
	}
	if !empty.IsEmpty() {
		t.Fatal("unknown session should load an empty cart")
	}

	c := New()
	c.Add(product("a", "t1", "12.00"))
	c.Add(product("a", "t1", "12.00"))
	if err := s.Save(ctx, "session-1", c); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.Load(ctx, "session-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Quantity("a") != 2 || loaded.TenantID() != "t1" {
		t.Fatalf("unexpected cart %+v", loaded.Items())
	}

	other, err := s.Load(ctx, "session-2")
	if err != nil || !other.IsEmpty() {
		t.Fatalf("sessions must not share carts: %v", err)
	}

	if err := s.Delete(ctx, "session-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := s.Load(ctx, "session-1")
	if err != nil || !gone.IsEmpty() {
		t.Fatalf("expected empty cart after delete: %v", err)
	}

	if _, err := s.Load(ctx, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for empty session, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	c := New()
	c.Add(product("a", "t1", "1"))
	if err := s.Save(context.Background(), "s", c); err != nil {
		t.Fatalf("save: %v", err)
	}

	now = now.Add(2 * time.Minute)
	loaded, err := s.Load(context.Background(), "s")
	if err != nil || !loaded.IsEmpty() {
		t.Fatalf("expected expired cart to be empty: %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client, 30*time.Minute)
	exerciseStore(t, s)

	c := New()
	c.Add(product("a", "t1", "1"))
	if err := s.Save(context.Background(), "ttl", c); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("cart:ttl"); ttl != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %v", ttl)
	}

	mr.FastForward(31 * time.Minute)
	loaded, err := s.Load(context.Background(), "ttl")
	if err != nil || !loaded.IsEmpty() {
		t.Fatalf("expected cart to expire: %v", err)
	}
}

func TestRedisStoreUnavailableIsTransient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisStore(client, time.Minute).Load(context.Background(), "s")
	if !errors.Is(err, apperr.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
