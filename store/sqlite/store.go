// Package sqlite implements the kudos store on SQLite through the Grove ORM.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/id"
	kudosstore "github.com/xraph/kudos/store"
)

// compile-time interface check
var _ kudosstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("kudos/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("kudos/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Grant Store ====================

// InsertGrant assigns the grant's ID and CreatedAt and appends it.
func (s *Store) InsertGrant(ctx context.Context, g *grant.Grant) error {
	g.ID = id.NewGrantID()
	g.CreatedAt = now()

	m := toGrantModel(g)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("kudos/sqlite: insert grant: %w", err)
	}
	return nil
}

// CountGrants counts the grants matching f.
func (s *Store) CountGrants(ctx context.Context, f grant.Filter) (int64, error) {
	where, args := whereClause(f)

	var total int64
	err := s.sdb.NewRaw("SELECT COUNT(*) FROM kudos_grants"+where, args...).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("kudos/sqlite: count grants: %w", err)
	}
	return total, nil
}

// QueryGrants returns the grants matching f.
func (s *Store) QueryGrants(ctx context.Context, f grant.Filter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.sdb.NewSelect(&models)

	if f.SenderID != "" {
		q = q.Where("sender_id = ?", f.SenderID)
	}
	if f.RecipientID != "" {
		q = q.Where("recipient_id = ?", f.RecipientID)
	}
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		q = q.Where("created_at < ?", formatTime(f.Until))
	}
	if f.Order == grant.OrderNewest {
		q = q.OrderExpr("created_at DESC, id DESC")
	} else {
		q = q.OrderExpr("created_at ASC, id ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("kudos/sqlite: query grants: %w", err)
	}

	result := make([]*grant.Grant, len(models))
	for i := range models {
		g, err := fromGrantModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = g
	}
	return result, nil
}

// ==================== Helpers ====================

// whereClause renders the filter's predicates with ? placeholders.
func whereClause(f grant.Filter) (string, []any) {
	var (
		preds []string
		args  []any
	)
	if f.SenderID != "" {
		preds = append(preds, "sender_id = ?")
		args = append(args, f.SenderID)
	}
	if f.RecipientID != "" {
		preds = append(preds, "recipient_id = ?")
		args = append(args, f.RecipientID)
	}
	if f.GroupID != "" {
		preds = append(preds, "group_id = ?")
		args = append(args, f.GroupID)
	}
	if !f.Since.IsZero() {
		preds = append(preds, "created_at >= ?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		preds = append(preds, "created_at < ?")
		args = append(args, formatTime(f.Until))
	}
	if len(preds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// timeLayout is fixed-width so that text comparison in SQL matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders t in UTC with timeLayout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a created_at value written by formatTime.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("kudos/sqlite: parse created_at %q: %w", s, err)
	}
	return t.UTC(), nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}
