// Package kvstore provides the ephemeral keyed store used for batch run
// locks and delivery attempt counters. Redis backs shared deployments; the
// in-process map serves tests and single-instance runs.
package kvstore

import (
	"context"
	"time"

	"job-notifier/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// Store is a string key/value store with per-key expiry. A ttl of zero
// means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// CompareAndDelete removes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	// Incr increments key and applies ttl when the key was created by this call.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// New returns the backend selected by cfg. rdb may be nil for the memory backend.
func New(cfg config.StoreConfig, rdb *redis.Client) Store {
	if cfg.Backend == config.StoreBackendMemory || rdb == nil {
		return NewMemoryStore(cfg.KeyPrefix)
	}
	return NewRedisStore(rdb, cfg.KeyPrefix)
}
