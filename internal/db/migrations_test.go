package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_Embedded(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	require.Equal(t, "0001_init.sql", files[0])

	content, err := migrationsFS.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	require.Contains(t, string(content), "memberships_circle_user_key UNIQUE (circle_id, user_id)")
}
