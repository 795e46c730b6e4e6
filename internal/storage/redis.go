package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey holds the ledger document when no key is configured.
const DefaultRedisKey = "trustscan:ledger"

// RedisStore keeps the ledger as a single JSON value, so every save is one SET.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Close closes the client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Load fetches the document; a missing key is absent.
func (s *RedisStore) Load(ctx context.Context) (*LedgerState, error) {
	if s == nil || s.client == nil {
		return nil, ErrNotConfigured
	}

	payload, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decodeState(payload)
}

// Save overwrites the document.
func (s *RedisStore) Save(ctx context.Context, state LedgerState) error {
	if s == nil || s.client == nil {
		return ErrNotConfigured
	}

	payload, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

var _ StateStore = (*RedisStore)(nil)
