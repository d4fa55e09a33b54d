package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cheapmatch/backend/internal/domain"
)

const (
	redisKeyPrefix     = "cheapmatch:match:"
	redisUpsertRetries = 5
)

// RedisStore keeps result cache entries in Redis as JSON, one key per
// (source item, currency)
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisClient connects to the Redis server at url (redis://...) and pings it
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return client, nil
}

// NewRedisStore creates a result store on client. Keys expire after retention;
// zero keeps them forever.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		retention: retention,
		now:       time.Now,
	}
}

func redisKey(key domain.CacheKey) string {
	return redisKeyPrefix + key.String()
}

// Get retrieves the entry for key
func (s *RedisStore) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, nil
}

// Upsert writes the entry inside a WATCH transaction so that concurrent writers
// of the same key serialize and UpdatedAt strictly increases
func (s *RedisStore) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	key := redisKey(entry.Key())
	var stamp time.Time

	txf := func(tx *redis.Tx) error {
		var prevStamp time.Time
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var prev domain.CacheEntry
			if json.Unmarshal(raw, &prev) == nil {
				prevStamp = prev.UpdatedAt
			}
		case !errors.Is(err, redis.Nil):
			return err
		}

		stored := *entry
		stored.UpdatedAt = domain.NextStamp(prevStamp, s.now())
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = stored.UpdatedAt
		}
		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.retention)
			return nil
		})
		if err == nil {
			stamp = stored.UpdatedAt
		}
		return err
	}

	for attempt := 0; attempt < redisUpsertRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			entry.UpdatedAt = stamp
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	return fmt.Errorf("%w: too many concurrent writes to %s", domain.ErrCacheUnavailable, key)
}
