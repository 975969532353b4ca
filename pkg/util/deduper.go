package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDeduper creates a deduper; logger may be nil.
func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// DedupKey formats the redis key for a scope and caller supplied key.
func DedupKey(scope, key string) string {
	return "dedup:" + scope + ":" + key
}

// AcquireOnce returns true the FIRST time (scope, key) is seen within the TTL
// and false for a duplicate.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, key string) bool {
	k := DedupKey(scope, key)

	ok, err := d.rdb.SetNX(ctx, k, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("scope", scope),
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated request",
			zap.String("scope", scope),
			zap.String("dedup_key", k),
		)
	}
	return ok
}

// Release forgets a key so a failed request can be retried right away.
func (d *Deduper) Release(ctx context.Context, scope, key string) {
	if err := d.rdb.Del(ctx, DedupKey(scope, key)).Err(); err != nil {
		d.logger.Warn("Redis dedup release failed", zap.String("scope", scope), zap.Error(err))
	}
}
