package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values in redis and announces every write on a pub/sub
// channel per key, so stores in other processes can observe it.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a store whose keys expire after ttl; zero means no expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	r.announce(ctx, Change{Key: key, Value: value})
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	r.announce(ctx, Change{Key: key, Removed: true})
	return nil
}

// announce is best effort: the value is already stored, so a failed publish
// only delays other processes until their next read.
func (r *RedisStore) announce(ctx context.Context, change Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		logger.Error("Failed to encode key change", err, map[string]interface{}{
			"key": change.Key,
		})
		return
	}
	if err := r.client.Publish(ctx, changeChannel(change.Key), payload).Err(); err != nil {
		logger.Warn("Failed to publish key change", map[string]interface{}{
			"key":   change.Key,
			"error": err.Error(),
		})
	}
}

// Watch subscribes to the key's change channel until ctx is cancelled.
func (r *RedisStore) Watch(ctx context.Context, key string) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, changeChannel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					logger.Warn("Ignoring malformed key change", map[string]interface{}{
						"channel": msg.Channel,
						"error":   err.Error(),
					})
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func changeChannel(key string) string {
	return fmt.Sprintf("kvstore:changed:%s", key)
}
