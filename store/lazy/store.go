// Package lazy wraps a backend dialer into a store.Store that connects on
// first use and reconnects after the backend becomes unreachable.
package lazy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/kudos"
	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/store"
)

// compile-time interface checks
var (
	_ store.Store               = (*Store)(nil)
	_ grant.RecipientAggregator = (*Store)(nil)
)

// DialFunc opens a connected store.
type DialFunc func(ctx context.Context) (store.Store, error)

// Option configures a lazy Store.
type Option func(*Store)

// WithLogger sets the logger used to report dropped connections.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store dials its backend once on first use. Concurrent first callers share
// a single dial. When a call fails the backend is pinged; if the ping fails
// too the connection is closed and the next call dials again.
type Store struct {
	dial   DialFunc
	group  singleflight.Group
	logger *slog.Logger

	mu     sync.RWMutex
	cur    store.Store
	closed bool
}

// New creates a lazy store around dial. No connection is made until the
// first call.
func New(dial DialFunc, opts ...Option) *Store {
	s := &Store{
		dial:   dial,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connected reports whether a live connection is currently held.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur != nil
}

func (s *Store) conn(ctx context.Context) (store.Store, error) {
	s.mu.RLock()
	cur, closed := s.cur, s.closed
	s.mu.RUnlock()

	if closed {
		return nil, kudos.ErrStoreClosed
	}
	if cur != nil {
		return cur, nil
	}

	v, err, _ := s.group.Do("dial", func() (any, error) {
		s.mu.RLock()
		cur := s.cur
		s.mu.RUnlock()
		if cur != nil {
			return cur, nil
		}

		st, err := s.dial(ctx)
		if err != nil {
			return nil, fmt.Errorf("kudos/lazy: dial: %w: %w", kudos.ErrStoreNotReady, err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			_ = st.Close() //nolint:errcheck // store closed while dialing
			return nil, kudos.ErrStoreClosed
		}
		s.cur = st
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(store.Store), nil
}

// dropIfUnreachable drops cur if err is set and the backend no longer answers pings.
func (s *Store) dropIfUnreachable(ctx context.Context, cur store.Store, err error) {
	if err == nil || ctx.Err() != nil {
		return
	}

	pingErr := cur.Ping(ctx)
	if pingErr == nil {
		return
	}

	s.mu.Lock()
	if s.cur != cur {
		s.mu.Unlock()
		return
	}
	s.cur = nil
	s.mu.Unlock()

	if closeErr := cur.Close(); closeErr != nil {
		s.logger.Debug("close unreachable store failed", "error", closeErr)
	}
	s.logger.Warn("store unreachable, connection dropped",
		"error", err,
		"ping_error", pingErr,
	)
}

// InsertGrant implements grant.Store.
func (s *Store) InsertGrant(ctx context.Context, g *grant.Grant) error {
	cur, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = cur.InsertGrant(ctx, g)
	s.dropIfUnreachable(ctx, cur, err)
	return err
}

// CountGrants implements grant.Store.
func (s *Store) CountGrants(ctx context.Context, f grant.Filter) (int64, error) {
	cur, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := cur.CountGrants(ctx, f)
	s.dropIfUnreachable(ctx, cur, err)
	return n, err
}

// QueryGrants implements grant.Store.
func (s *Store) QueryGrants(ctx context.Context, f grant.Filter) ([]*grant.Grant, error) {
	cur, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := cur.QueryGrants(ctx, f)
	s.dropIfUnreachable(ctx, cur, err)
	return rows, err
}

// TopRecipients forwards to the backend when it implements
// grant.RecipientAggregator and returns grant.ErrAggregationUnsupported
// otherwise.
func (s *Store) TopRecipients(ctx context.Context, groupID string, since, until time.Time, limit int) ([]grant.RecipientCount, error) {
	cur, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	agg, ok := cur.(grant.RecipientAggregator)
	if !ok {
		return nil, grant.ErrAggregationUnsupported
	}
	rows, err := agg.TopRecipients(ctx, groupID, since, until, limit)
	s.dropIfUnreachable(ctx, cur, err)
	return rows, err
}

// Migrate dials if needed and migrates the backend.
func (s *Store) Migrate(ctx context.Context) error {
	cur, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = cur.Migrate(ctx)
	s.dropIfUnreachable(ctx, cur, err)
	return err
}

// Ping dials if needed and pings the backend.
func (s *Store) Ping(ctx context.Context) error {
	cur, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = cur.Ping(ctx)
	s.dropIfUnreachable(ctx, cur, err)
	return err
}

// Close closes the held connection, if any. Later calls fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	cur := s.cur
	s.cur = nil
	s.closed = true
	s.mu.Unlock()

	if cur == nil {
		return nil
	}
	return cur.Close()
}
