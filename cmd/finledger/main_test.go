package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd, err := newRootCommand()
	require.NoError(t, err)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "migrate")
	assert.NotNil(t, cmd.PersistentFlags().Lookup("database"))
}

func TestMigrateCommand_SQLite(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	dsn := filepath.Join(t.TempDir(), "ledger.db")

	cmd, err := newRootCommand()
	require.NoError(t, err)
	cmd.SetArgs([]string{"migrate", "--driver", "sqlite3", "-d", dsn})

	assert.NoError(t, cmd.Execute())
	assert.FileExists(t, dsn)
}

func TestMigrateCommand_MemoryDriver(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	cmd, err := newRootCommand()
	require.NoError(t, err)
	cmd.SetArgs([]string{"migrate", "--driver", "memory"})

	assert.Error(t, cmd.Execute())
}

func TestServeCommand_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("JWT_SECRET_KEY", "")

	cmd, err := newRootCommand()
	require.NoError(t, err)
	cmd.SetArgs([]string{"serve", "--driver", "memory"})

	assert.ErrorContains(t, cmd.Execute(), "JWT secret key is required")
}
