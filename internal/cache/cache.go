// Package cache stores encoded hex grid responses so repeated queries skip
// generation.
package cache

import (
	"context"
	"time"
)

// Interface is a byte-valued store with per-entry TTL. Get reports a miss
// with ok=false and a nil error.
type Interface interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type timeoutStore struct {
	next    Interface
	timeout time.Duration
}

// WithTimeout bounds every operation on s by d so a slow backend cannot stall
// a request. d <= 0 returns s unchanged.
func WithTimeout(s Interface, d time.Duration) Interface {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: d}
}

func (t *timeoutStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Get(ctx, key)
}

func (t *timeoutStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Set(ctx, key, val, ttl)
}
