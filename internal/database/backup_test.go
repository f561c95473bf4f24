package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupNowCopiesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("sqlite bytes"), 0o644))

	backupDir := filepath.Join(dir, "backups")
	svc := NewBackupService(dbPath, BackupConfig{Enabled: true, Dir: backupDir}, zerolog.Nop())

	require.NoError(t, svc.BackupNow())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	copied, err := os.ReadFile(filepath.Join(backupDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, []byte("sqlite bytes"), copied)
}

func TestBackupNowMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	svc := NewBackupService(filepath.Join(dir, "absent.db"), BackupConfig{Dir: filepath.Join(dir, "backups")}, zerolog.Nop())

	assert.Error(t, svc.BackupNow())
}

func TestBackupServiceDisabledStart(t *testing.T) {
	svc := NewBackupService("x.db", BackupConfig{Enabled: false}, zerolog.Nop())

	svc.Start(context.Background())
	svc.Stop()
}

func TestBackupConfigDefaults(t *testing.T) {
	svc := NewBackupService("x.db", BackupConfig{}, zerolog.Nop())

	assert.Equal(t, 24, svc.config.IntervalHours)
	assert.Equal(t, "data/backups", svc.config.Dir)
}
