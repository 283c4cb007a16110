package cache

import (
	"errors"
	"time"
)

// ErrCacheMiss is returned by NoopService for every lookup
var ErrCacheMiss = errors.New("cache miss")

// NoopService implements CacheService without storing anything.
// It is the default when no memcache address is configured, so a plain
// run needs no external daemon.
type NoopService struct{}

// NewNoopService creates a new no-op cache service
func NewNoopService() *NoopService {
	return &NoopService{}
}

// Get always misses
func (n *NoopService) Get(key string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value
func (n *NoopService) Set(key string, value []byte, expiration time.Duration) error {
	return nil
}

// Delete does nothing
func (n *NoopService) Delete(key string) error {
	return nil
}
