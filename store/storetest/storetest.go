// Package storetest runs the grant store contract against any store.Store.
// Backend packages call Run from their own tests with a factory that returns
// a fresh, migrated store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/store"
)

// Factory returns an empty, migrated store. It should register its own
// cleanup with t.
type Factory func(t *testing.T) store.Store

// tick separates consecutive inserts so every backend sees distinct
// CreatedAt values, including those that keep millisecond precision.
const tick = 3 * time.Millisecond

// Run executes every contract case as a subtest, each on a fresh store.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"MigrateIsIdempotent", testMigrateIsIdempotent},
		{"InsertAssignsIDAndTime", testInsertAssignsIDAndTime},
		{"FieldsSurvive", testFieldsSurvive},
		{"CountAndQueryFilters", testCountAndQueryFilters},
		{"OrderAndLimit", testOrderAndLimit},
		{"HalfOpenWindow", testHalfOpenWindow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func give(t *testing.T, s store.Store, sender, recipient, group string) *grant.Grant {
	t.Helper()
	g := grant.Input{
		SenderID:             sender,
		SenderDisplayName:    sender + "-name",
		RecipientID:          recipient,
		RecipientDisplayName: recipient + "-name",
		GroupID:              group,
	}.Build()
	require.NoError(t, s.InsertGrant(context.Background(), g))
	time.Sleep(tick)
	return g
}

func ids(rows []*grant.Grant) []string {
	out := make([]string, len(rows))
	for i, g := range rows {
		out[i] = g.ID.String()
	}
	return out
}

func testMigrateIsIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))
}

func testInsertAssignsIDAndTime(t *testing.T, s store.Store) {
	before := time.Now().Add(-time.Second)
	g := give(t, s, "a", "b", "g")
	after := time.Now().Add(time.Second)

	assert.False(t, g.ID.IsNil())
	assert.True(t, g.CreatedAt.After(before), "created_at %v", g.CreatedAt)
	assert.True(t, g.CreatedAt.Before(after), "created_at %v", g.CreatedAt)
}

func testFieldsSurvive(t *testing.T, s store.Store) {
	ctx := context.Background()
	in := grant.Input{
		SenderID:             "100",
		SenderUsername:       "alice",
		SenderDisplayName:    "Alice",
		RecipientID:          "200",
		RecipientUsername:    "bob",
		RecipientDisplayName: "Bob",
		GroupID:              "g",
		GroupName:            "Noodle Guild",
		ChannelID:            "c1",
		Message:              grant.Provided("Danke für alles 🍜"),
	}
	g := in.Build()
	require.NoError(t, s.InsertGrant(ctx, g))

	rows, err := s.QueryGrants(ctx, grant.Filter{GroupID: "g"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, g.ID.String(), got.ID.String())
	assert.True(t, g.CreatedAt.Equal(got.CreatedAt), "stored %v, read %v", g.CreatedAt, got.CreatedAt)
	assert.Equal(t, "alice", got.SenderUsername)
	assert.Equal(t, "Alice", got.SenderDisplayName)
	assert.Equal(t, "bob", got.RecipientUsername)
	assert.Equal(t, "Bob", got.RecipientDisplayName)
	assert.Equal(t, "Noodle Guild", got.GroupName)
	assert.Equal(t, "c1", got.ChannelID)
	assert.Equal(t, "Danke für alles 🍜", got.Message)
}

func testCountAndQueryFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	give(t, s, "a", "b", "g1")
	give(t, s, "a", "c", "g1")
	give(t, s, "a", "b", "g2")
	give(t, s, "d", "b", "g1")

	tests := []struct {
		name string
		f    grant.Filter
		want int64
	}{
		{"everything", grant.Filter{}, 4},
		{"sender in group", grant.Filter{SenderID: "a", GroupID: "g1"}, 2},
		{"recipient in group", grant.Filter{RecipientID: "b", GroupID: "g1"}, 2},
		{"other group", grant.Filter{GroupID: "g2"}, 1},
		{"unknown group", grant.Filter{GroupID: "g3"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.CountGrants(ctx, tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			rows, err := s.QueryGrants(ctx, tt.f)
			require.NoError(t, err)
			assert.Len(t, rows, int(tt.want))
			for _, g := range rows {
				assert.True(t, tt.f.Matches(g), "row %s does not match", g.ID)
			}
		})
	}
}

func testOrderAndLimit(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := give(t, s, "a", "b", "g")
	second := give(t, s, "a", "c", "g")
	third := give(t, s, "d", "b", "g")

	oldest, err := s.QueryGrants(ctx, grant.Filter{GroupID: "g"})
	require.NoError(t, err)
	assert.Equal(t, ids([]*grant.Grant{first, second, third}), ids(oldest))

	newest, err := s.QueryGrants(ctx, grant.Filter{GroupID: "g", Order: grant.OrderNewest})
	require.NoError(t, err)
	assert.Equal(t, ids([]*grant.Grant{third, second, first}), ids(newest))

	limited, err := s.QueryGrants(ctx, grant.Filter{GroupID: "g", Order: grant.OrderNewest, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, ids([]*grant.Grant{third, second}), ids(limited))

	n, err := s.CountGrants(ctx, grant.Filter{GroupID: "g", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "count ignores Limit")
}

func testHalfOpenWindow(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := give(t, s, "a", "b", "g")
	second := give(t, s, "a", "b", "g")
	third := give(t, s, "a", "b", "g")

	window := grant.Filter{GroupID: "g", Since: second.CreatedAt, Until: third.CreatedAt}
	n, err := s.CountGrants(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.QueryGrants(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, ids([]*grant.Grant{second}), ids(rows))

	since := grant.Filter{GroupID: "g", Since: second.CreatedAt}
	n, err = s.CountGrants(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	until := grant.Filter{GroupID: "g", Until: second.CreatedAt}
	rows, err = s.QueryGrants(ctx, until)
	require.NoError(t, err)
	assert.Equal(t, ids([]*grant.Grant{first}), ids(rows))
}
