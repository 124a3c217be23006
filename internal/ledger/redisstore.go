package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	recordKeyPrefix = "tourney:match:"
	indexKey        = "tourney:match:index"
)

// RedisStore persists match records in Redis: each record is a JSON string
// under its own key, and a set indexes the record IDs for enumeration. Put
// writes both inside a WATCH on the record key and retries a transaction
// that fails with redis.TxFailedErr, up to three attempts in all.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore dials redisURL and pings it before returning.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func recordKey(id string) string { return recordKeyPrefix + id }

// Put upserts rec's key and adds it to the index set in one transaction.
func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	const maxRetries = 3
	key := recordKey(rec.ID)
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			_, txErr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.SAdd(ctx, indexKey, rec.ID)
				return nil
			})
			return txErr
		}, key)
		if err == nil {
			return nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return fmt.Errorf("put match record: %w", err)
	}
	return fmt.Errorf("put match record %q: exhausted retries under contention", rec.ID)
}

// All scans the index and loads every record it names.
func (s *RedisStore) All(ctx context.Context) ([]Record, error) {
	ids, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list match ids: %w", err)
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, recordKey(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get match record %q: %w", id, err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode match record %q: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
