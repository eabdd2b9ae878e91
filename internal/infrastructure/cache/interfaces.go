package cache

import (
	"context"
	"time"
)

// Store is the key-value region backing settings, reports and audit logs.
type Store interface {
	// Get retrieves a value by key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with optional TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists
	Exists(ctx context.Context, key string) (bool, error)

	// Keys lists keys matching a glob pattern
	Keys(ctx context.Context, pattern string) ([]string, error)

	// GetJSON retrieves and unmarshals JSON data
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// SetJSON marshals and stores JSON data
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// WithLock runs fn while holding a distributed lock named key, so
	// read-modify-write sequences on one region are serialized.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error

	// Ping checks connectivity
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// ErrCacheKeyNotFound is returned when a key does not exist
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}

// ErrLockNotObtained is returned when a region lock could not be acquired
// before the context or retry budget ran out.
type ErrLockNotObtained struct {
	Key string
}

func (e ErrLockNotObtained) Error() string {
	return "lock not obtained: " + e.Key
}
