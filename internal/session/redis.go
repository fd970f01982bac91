package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

// RedisStore stores sessions in Redis so multiple gateway instances share
// them. Expiry rides on the Redis key TTL.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "gw:session:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: prefix,
		logger:    logger.Named("session_redis"),
	}, nil
}

func (r *RedisStore) key(sessionID string) string {
	return r.keyPrefix + sessionID
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Data, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session Data
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (r *RedisStore) Put(ctx context.Context, session *Data) error {
	return r.write(ctx, session)
}

func (r *RedisStore) Update(ctx context.Context, session *Data) error {
	exists, err := r.client.Exists(ctx, r.key(session.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	return r.write(ctx, session)
}

func (r *RedisStore) write(ctx context.Context, session *Data) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refusing to store an already expired session")
	}
	return r.client.Set(ctx, r.key(session.ID), raw, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.key(sessionID)).Err()
}

// Cleanup is a no-op: Redis drops expired keys through their TTL.
func (r *RedisStore) Cleanup(ctx context.Context) (int64, error) {
	return 0, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
