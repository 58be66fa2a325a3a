package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteRejectsInvalidMode(t *testing.T) {
	_, err := OpenSQLite("ignored.sqlite", "readwrite", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestBuildDSN(t *testing.T) {
	write := buildDSN("/tmp/auth.sqlite", "write")
	assert.True(t, strings.HasPrefix(write, "/tmp/auth.sqlite?"))
	assert.Contains(t, write, "_journal_mode=WAL")
	assert.Contains(t, write, "_busy_timeout=5000")
	assert.Contains(t, write, "_foreign_keys=on")
	assert.Contains(t, write, "_txlock=immediate")

	read := buildDSN("/tmp/auth.sqlite", "read")
	assert.NotContains(t, read, "_txlock")
}

func TestMigrationsCreateSchema(t *testing.T) {
	writeDB, readDB := OpenTestSQLite(t)

	ctx := context.Background()
	for _, table := range []string{
		"operations",
		"users_groups",
		"users_groups_hierarchy",
		"users_groups_members",
		"entities_groups",
		"entities_groups_hierarchy",
		"entities_groups_members",
		"entity_types",
		"entity_references",
		"permissions",
	} {
		var name string
		err := readDB.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	// The permissions CHECK constraint enforces exactly one subject.
	_, err := writeDB.ExecContext(ctx,
		`INSERT INTO permissions (id, operation_id, allow, level, created_at)
		 VALUES ('p1', 'op1', 1, 1, CURRENT_TIMESTAMP)`)
	assert.Error(t, err, "a permission without a subject should be rejected")
}
