// Package lrustore is an in-process response cache bounded by entry count.
package lrustore

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/observability"
)

const defaultSize = 1024

type entry struct {
	val     []byte
	expires time.Time
}

type Store struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(size int, opts ...Option) (*Store, error) {
	if size <= 0 {
		size = defaultSize
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("lru: %w", err)
	}
	s := &Store{lru: c, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("get", err, time.Since(start).Seconds())
		return nil, false, err
	}

	s.mu.Lock()
	e, ok := s.lru.Get(key)
	if ok && !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.lru.Remove(key)
		ok = false
	}
	s.mu.Unlock()

	observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
	if !ok {
		return nil, false, nil
	}
	return e.val, true, nil
}

// Set stores a copy of val. ttl <= 0 keeps the entry until it is evicted.
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("set", err, time.Since(start).Seconds())
		return err
	}

	e := entry{val: append([]byte(nil), val...)}
	s.mu.Lock()
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.lru.Add(key, e)
	s.mu.Unlock()

	observability.ObserveCacheOp("set", nil, time.Since(start).Seconds())
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
