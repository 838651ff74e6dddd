// Package plugin provides the hook system for kudos.
// Plugins observe ledger lifecycle events after the fact; a failing plugin is
// logged and never changes the outcome of the operation that emitted it.
package plugin

import (
	"context"

	"github.com/xraph/kudos/grant"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Grant hooks
// ──────────────────────────────────────────────────

// OnGrantRecorded is called after a grant has been committed to the store.
// This is where best-effort recipient notifications belong.
type OnGrantRecorded interface {
	Plugin
	OnGrantRecorded(ctx context.Context, g *grant.Grant) error
}

// OnGrantRejected is called when a candidate grant fails validation.
type OnGrantRejected interface {
	Plugin
	OnGrantRejected(ctx context.Context, c grant.Candidate, reason error) error
}

// OnQuotaExhausted is called when a sender has no allotment left.
type OnQuotaExhausted interface {
	Plugin
	OnQuotaExhausted(ctx context.Context, senderID, groupID string, used, limit int64) error
}
