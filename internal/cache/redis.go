package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/logger"
)

// RedisStore shares judgments across processes. Redis failures are logged and
// treated as misses; the analysis pipeline never depends on the cache.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(host string, port int, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis judgment cache initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*models.Judgment, bool) {
	data, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("Redis cache read failed", zap.Error(err))
		return nil, false
	}

	var judgment models.Judgment
	if err := json.Unmarshal(data, &judgment); err != nil {
		logger.Warn("Redis cache entry is corrupt", zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, false
	}

	return &judgment, true
}

func (s *RedisStore) Put(ctx context.Context, fingerprint string, judgment *models.Judgment) {
	if judgment == nil {
		return
	}

	data, err := json.Marshal(judgment)
	if err != nil {
		logger.Warn("Failed to marshal judgment for cache", zap.Error(err))
		return
	}

	if err := s.client.Set(ctx, s.key(fingerprint), data, s.ttl).Err(); err != nil {
		logger.Warn("Redis cache write failed", zap.Error(err))
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(fingerprint string) string {
	return "judgment:" + fingerprint
}
