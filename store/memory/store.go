// Package memory provides an in-process grant store for tests and
// single-node deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/kudos"
	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/id"
	"github.com/xraph/kudos/period"
	"github.com/xraph/kudos/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Option configures a memory Store.
type Option func(*Store)

// WithClock sets the clock used to stamp CreatedAt on insert.
func WithClock(c period.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// Store keeps grants in insertion order behind a read/write mutex.
type Store struct {
	mu     sync.RWMutex
	grants []*grant.Grant
	clock  period.Clock
	closed bool
}

// New creates an empty memory store.
func New(opts ...Option) *Store {
	s := &Store{
		grants: make([]*grant.Grant, 0),
		clock:  period.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertGrant stores a copy of g after assigning its ID and CreatedAt.
func (s *Store) InsertGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kudos.ErrStoreClosed
	}

	g.ID = id.NewGrantID()
	g.CreatedAt = s.clock.Now()
	s.grants = append(s.grants, g.Clone())
	return nil
}

// CountGrants counts the grants matching f.
func (s *Store) CountGrants(_ context.Context, f grant.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, kudos.ErrStoreClosed
	}

	var n int64
	for _, g := range s.grants {
		if f.Matches(g) {
			n++
		}
	}
	return n, nil
}

// QueryGrants returns copies of the grants matching f. Records with equal
// CreatedAt keep insertion order (reversed for OrderNewest).
func (s *Store) QueryGrants(_ context.Context, f grant.Filter) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kudos.ErrStoreClosed
	}

	result := make([]*grant.Grant, 0)
	for _, g := range s.grants {
		if f.Matches(g) {
			result = append(result, g.Clone())
		}
	}

	if f.Order == grant.OrderNewest {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	} else {
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		})
	}

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

// Len returns the number of stored grants.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.grants)
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return kudos.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Stored grants are kept.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
