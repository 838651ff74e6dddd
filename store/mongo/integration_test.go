package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/kudos/grant"
	kudosstore "github.com/xraph/kudos/store"
	"github.com/xraph/kudos/store/storetest"
)

// KUDOS_MONGO_URI points the integration tests at a disposable database.
// The URI must name the database.
const uriEnv = "KUDOS_MONGO_URI"

func openStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv(uriEnv)
	if uri == "" {
		t.Skipf("%s not set", uriEnv)
	}
	ctx := context.Background()

	mdb := mongodriver.New()
	require.NoError(t, mdb.Open(ctx, uri))
	db, err := grove.Open(mdb)
	require.NoError(t, err)

	s := New(db)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	_, err = s.mdb.Collection(colGrants).DeleteMany(ctx, bson.M{})
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	if os.Getenv(uriEnv) == "" {
		t.Skipf("%s not set", uriEnv)
	}
	storetest.Run(t, func(t *testing.T) kudosstore.Store {
		return openStore(t)
	})
}

func TestTopRecipientsOnServer(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	give := func(sender, recipient, name string) {
		t.Helper()
		g := grant.Input{SenderID: sender, RecipientID: recipient, RecipientDisplayName: name, GroupID: "g"}.Build()
		require.NoError(t, s.InsertGrant(ctx, g))
		time.Sleep(3 * time.Millisecond)
	}
	give("a", "b", "Bee")
	give("a", "c", "Cee")
	give("d", "c", "Cee Renamed")

	rows, err := s.TopRecipients(ctx, "g", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, []grant.RecipientCount{
		{RecipientID: "c", RecipientDisplayName: "Cee Renamed", Count: 2},
		{RecipientID: "b", RecipientDisplayName: "Bee", Count: 1},
	}, rows)
}
