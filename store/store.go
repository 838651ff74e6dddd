// Package store defines the unified persistence contract for kudos backends.
package store

import (
	"context"

	"github.com/xraph/kudos/grant"
)

// Store is the unified storage interface for all kudos entities.
// Backends are append-only: grants are inserted and read, never changed.
type Store interface {
	grant.Store

	// Migrate creates or upgrades the backend schema.
	Migrate(ctx context.Context) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend connection.
	Close() error
}
