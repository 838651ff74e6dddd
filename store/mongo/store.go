// Package mongo implements the kudos store on MongoDB through the Grove ORM.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/id"
	kudosstore "github.com/xraph/kudos/store"
)

// Collection name constants.
const (
	colGrants = "kudos_grants"
)

// compile-time interface checks
var (
	_ kudosstore.Store          = (*Store)(nil)
	_ grant.RecipientAggregator = (*Store)(nil)
)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all kudos collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("kudos/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("kudos/mongo: insert grant: %w", err)
	}
	return nil
}

// CountGrants counts the grants matching f.
func (s *Store) CountGrants(ctx context.Context, f grant.Filter) (int64, error) {
	n, err := s.mdb.Collection(colGrants).CountDocuments(ctx, filterDoc(f))
	if err != nil {
		return 0, fmt.Errorf("kudos/mongo: count grants: %w", err)
	}
	return n, nil
}

// QueryGrants returns the grants matching f.
func (s *Store) QueryGrants(ctx context.Context, f grant.Filter) ([]*grant.Grant, error) {
	var models []grantModel

	dir := 1
	if f.Order == grant.OrderNewest {
		dir = -1
	}

	q := s.mdb.NewFind(&models).
		Filter(filterDoc(f)).
		Sort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}})

	if f.Limit > 0 {
		q = q.Limit(int64(f.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("kudos/mongo: query grants: %w", err)
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

// TopRecipients groups the group's grants in [since, until) by recipient on
// the server. A zero until leaves the window open.
func (s *Store) TopRecipients(ctx context.Context, groupID string, since, until time.Time, limit int) ([]grant.RecipientCount, error) {
	cursor, err := s.mdb.Collection(colGrants).Aggregate(ctx, leaderboardPipeline(groupID, since, until, limit))
	if err != nil {
		return nil, fmt.Errorf("kudos/mongo: aggregate recipients: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []recipientCountModel
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("kudos/mongo: aggregate recipients decode: %w", err)
	}

	result := make([]grant.RecipientCount, 0, len(rows))
	for _, r := range rows {
		result = append(result, grant.RecipientCount{
			RecipientID:          r.RecipientID,
			RecipientDisplayName: r.DisplayName,
			Count:                r.Count,
		})
	}
	return result, nil
}

// ==================== Helpers ====================

// filterDoc translates a grant filter into a query document.
func filterDoc(f grant.Filter) bson.M {
	filter := bson.M{}
	if f.SenderID != "" {
		filter["sender_id"] = f.SenderID
	}
	if f.RecipientID != "" {
		filter["recipient_id"] = f.RecipientID
	}
	if f.GroupID != "" {
		filter["group_id"] = f.GroupID
	}

	created := bson.M{}
	if !f.Since.IsZero() {
		created["$gte"] = f.Since
	}
	if !f.Until.IsZero() {
		created["$lt"] = f.Until
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	return filter
}

// leaderboardPipeline counts grants per recipient, keeping the most recent
// display name, ordered by count, first grant time and recipient id.
func leaderboardPipeline(groupID string, since, until time.Time, limit int) bson.A {
	match := filterDoc(grant.Filter{GroupID: groupID, Since: since, Until: until})

	return bson.A{
		bson.M{"$match": match},
		bson.M{"$sort": bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		bson.M{
			"$group": bson.M{
				"_id":          "$recipient_id",
				"display_name": bson.M{"$last": "$recipient_display_name"},
				"count":        bson.M{"$sum": 1},
				"first":        bson.M{"$min": "$created_at"},
			},
		},
		bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "first", Value: 1}, {Key: "_id", Value: 1}}},
		bson.M{"$limit": limit},
	}
}

// now returns the current UTC time at the precision a BSON date keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// migrationIndexes returns the index definitions for all kudos collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colGrants: {
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
}
