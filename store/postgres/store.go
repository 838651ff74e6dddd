// Package postgres implements the kudos store on PostgreSQL through the
// Grove ORM.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/id"
	kudosstore "github.com/xraph/kudos/store"
)

// compile-time interface check
var _ kudosstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("kudos/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("kudos/postgres: migration failed: %w", err)
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
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("kudos/postgres: insert grant: %w", err)
	}
	return nil
}

// CountGrants counts the grants matching f.
func (s *Store) CountGrants(ctx context.Context, f grant.Filter) (int64, error) {
	preds, args := predicates(f)
	query := "SELECT COUNT(*) FROM kudos_grants"
	if len(preds) > 0 {
		query += " WHERE " + strings.Join(preds, " AND ")
	}

	var total int64
	if err := s.pg.NewRaw(query, args...).Scan(ctx, &total); err != nil {
		return 0, fmt.Errorf("kudos/postgres: count grants: %w", err)
	}
	return total, nil
}

// QueryGrants returns the grants matching f.
func (s *Store) QueryGrants(ctx context.Context, f grant.Filter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.pg.NewSelect(&models)

	preds, args := predicates(f)
	for i, p := range preds {
		q = q.Where(p, args[i])
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
		return nil, fmt.Errorf("kudos/postgres: query grants: %w", err)
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

// predicates renders one $N-numbered predicate per filter field, paired
// index for index with its bound argument.
func predicates(f grant.Filter) ([]string, []any) {
	var (
		preds  []string
		args   []any
		argIdx int
	)
	add := func(expr string, v any) {
		argIdx++
		preds = append(preds, fmt.Sprintf(expr, argIdx))
		args = append(args, v)
	}

	if f.SenderID != "" {
		add("sender_id = $%d", f.SenderID)
	}
	if f.RecipientID != "" {
		add("recipient_id = $%d", f.RecipientID)
	}
	if f.GroupID != "" {
		add("group_id = $%d", f.GroupID)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < $%d", f.Until)
	}
	return preds, args
}

// now returns the current UTC time at the precision TIMESTAMPTZ keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
