package grant

import (
	"context"
	"errors"
	"time"
)

// ErrAggregationUnsupported is returned by a RecipientAggregator that
// forwards to a backend which cannot aggregate. Callers fall back to
// grouping QueryGrants rows themselves.
var ErrAggregationUnsupported = errors.New("grant: recipient aggregation not supported")

// Order selects the CreatedAt ordering of a query.
type Order int

const (
	// OrderOldest returns records oldest first. It is the zero value.
	OrderOldest Order = iota
	// OrderNewest returns records newest first.
	OrderNewest
)

// Filter is a parameterized predicate over the ledger. Empty string fields
// and zero times are ignored. Backends must bind every value as a query
// parameter.
type Filter struct {
	SenderID    string
	RecipientID string
	GroupID     string
	// Since is inclusive.
	Since time.Time
	// Until is exclusive.
	Until time.Time
	Order Order
	// Limit caps the result; zero means no limit.
	Limit int
}

// Matches reports whether g satisfies the filter's predicates. In-process
// backends use it; SQL and document backends translate the same fields.
func (f Filter) Matches(g *Grant) bool {
	if f.SenderID != "" && g.SenderID != f.SenderID {
		return false
	}
	if f.RecipientID != "" && g.RecipientID != f.RecipientID {
		return false
	}
	if f.GroupID != "" && g.GroupID != f.GroupID {
		return false
	}
	if !f.Since.IsZero() && g.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !g.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

// Store is the append-only ledger contract: it has no update or delete path.
type Store interface {
	// InsertGrant persists g, assigning its ID and CreatedAt in place.
	InsertGrant(ctx context.Context, g *Grant) error
	// CountGrants counts the records matching f. Order and Limit are ignored.
	CountGrants(ctx context.Context, f Filter) (int64, error)
	// QueryGrants returns the records matching f.
	QueryGrants(ctx context.Context, f Filter) ([]*Grant, error)
}

// RecipientAggregator is implemented by backends that can group grants by
// recipient server-side. Rows must be ordered by count descending, then by
// the recipient's earliest grant in the window, then by recipient id.
type RecipientAggregator interface {
	TopRecipients(ctx context.Context, groupID string, since, until time.Time, limit int) ([]RecipientCount, error)
}
