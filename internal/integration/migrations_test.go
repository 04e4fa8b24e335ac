package integration

import (
	"context"
	"testing"

	"github.com/aliuyar1234/circles/internal/db"
	"github.com/stretchr/testify/require"
)

func TestIntegration_MigrationsApplyToFreshPostgres(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	for _, table := range []string{"users", "circles", "memberships", "limited_invite_links", "audit_log", "circle_events"} {
		var count int
		err := pool.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		`, table).Scan(&count)
		require.NoError(t, err)
		require.Equal(t, 1, count, table)
	}

	files, err := db.MigrationFiles()
	require.NoError(t, err)

	var applied int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	require.Equal(t, len(files), applied)
}

func TestIntegration_MigrationsAreRerunnable(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	require.NoError(t, db.RunMigrations(context.Background(), pool))
}

func TestIntegration_SchemaCapsUsedCount(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	_, err := pool.Exec(ctx, `INSERT INTO users (id, name, email) VALUES
		('00000000-0000-0000-0000-000000000001', 'a', 'a@example.com'),
		('00000000-0000-0000-0000-000000000002', 'b', 'b@example.com')`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO circles (id, name, owner_id, invite_code)
		VALUES ('00000000-0000-0000-0000-0000000000c1', 'c', '00000000-0000-0000-0000-000000000001', 'schemacode0001')`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO limited_invite_links (id, circle_id, code, max_uses, used_count, created_by_user_id)
		VALUES ('00000000-0000-0000-0000-0000000000d1', '00000000-0000-0000-0000-0000000000c1', 'schemalink0001', 1, 2, '00000000-0000-0000-0000-000000000001')`)
	require.Error(t, err, "used_count must never exceed max_uses")
}
