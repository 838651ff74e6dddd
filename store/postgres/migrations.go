package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"

	// Registers the "pg" executor used by migrate.NewExecutorFor.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
)

// Migrations is the grove migration group for the kudos store.
var Migrations = migrate.NewGroup("kudos")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_kudos_grants",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS kudos_grants (
    id                     TEXT PRIMARY KEY,
    sender_id              TEXT NOT NULL,
    sender_username        TEXT NOT NULL DEFAULT '',
    sender_display_name    TEXT NOT NULL DEFAULT '',
    recipient_id           TEXT NOT NULL,
    recipient_username     TEXT NOT NULL DEFAULT '',
    recipient_display_name TEXT NOT NULL DEFAULT '',
    group_id               TEXT NOT NULL,
    group_name             TEXT NOT NULL DEFAULT '',
    channel_id             TEXT NOT NULL DEFAULT '',
    message                VARCHAR(500) NOT NULL DEFAULT '',
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT kudos_grants_not_self CHECK (sender_id <> recipient_id)
);

CREATE INDEX IF NOT EXISTS idx_kudos_grants_sender ON kudos_grants (group_id, sender_id, created_at);
CREATE INDEX IF NOT EXISTS idx_kudos_grants_recipient ON kudos_grants (group_id, recipient_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_kudos_grants_group ON kudos_grants (group_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS kudos_grants`)
				return err
			},
		},
	)
}
