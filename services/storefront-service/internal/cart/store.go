package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
)

// Store keeps carts between requests, keyed by an opaque session id. Loading an unknown or
// expired session yields an empty cart.
type Store interface {
	Load(ctx context.Context, session string) (*Cart, error)
	Save(ctx context.Context, session string, c *Cart) error
	Delete(ctx context.Context, session string) error
}

var errNoSession = apperr.Validation("session", "cart session is required")

// MemoryStore is a process-local Store. Entries expire after the configured TTL.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Load(_ context.Context, session string) (*Cart, error) {
	if session == "" {
		return nil, errNoSession
	}
	s.mu.Lock()
	e, ok := s.entries[session]
	if ok && s.ttl > 0 && !s.now().Before(e.expiresAt) {
		delete(s.entries, session)
		ok = false
	}
	s.mu.Unlock()

	c := New()
	if !ok {
		return c, nil
	}
	if err := json.Unmarshal(e.data, c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

func (s *MemoryStore) Save(_ context.Context, session string, c *Cart) error {
	if session == "" {
		return errNoSession
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[session] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, session)
	return nil
}

// RedisStore keeps carts in redis as JSON under "cart:<session>" with a TTL that is
// refreshed on every save.
type RedisStore struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, ttl: ttl}
}

func cartKey(session string) string {
	return fmt.Sprintf("cart:%s", session)
}

func (s *RedisStore) Load(ctx context.Context, session string) (*Cart, error) {
	if session == "" {
		return nil, errNoSession
	}
	data, err := s.redis.Get(ctx, cartKey(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeTransient, "cart store unavailable", err)
	}

	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

func (s *RedisStore) Save(ctx context.Context, session string, c *Cart) error {
	if session == "" {
		return errNoSession
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.redis.Set(ctx, cartKey(session), data, s.ttl).Err(); err != nil {
		return apperr.Wrap(apperr.CodeTransient, "cart store unavailable", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, session string) error {
	if err := s.redis.Del(ctx, cartKey(session)).Err(); err != nil {
		return apperr.Wrap(apperr.CodeTransient, "cart store unavailable", err)
	}
	return nil
}
