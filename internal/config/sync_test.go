package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSyncConfigHolder_DefaultsWithoutFile(t *testing.T) {
	holder, err := NewSyncConfigHolder(Config{SyncConfigPath: t.TempDir()})
	require.NoError(t, err)

	got := holder.Get()
	assert.True(t, got.AutoSync)
	assert.Equal(t, time.Minute, got.Interval)
	assert.Equal(t, 5*time.Minute, got.HeartbeatGap)
}

func TestNewSyncConfigHolder_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("sync:\n  autoSync: false\n  interval: 30s\n  heartbeatGap: 2m\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sync.yml"), content, 0o600))

	holder, err := NewSyncConfigHolder(Config{SyncConfigPath: dir})
	require.NoError(t, err)

	got := holder.Get()
	assert.False(t, got.AutoSync)
	assert.Equal(t, 30*time.Second, got.Interval)
	assert.Equal(t, 2*time.Minute, got.HeartbeatGap)
}

func TestNewSyncConfigHolder_RejectsBadInterval(t *testing.T) {
	dir := t.TempDir()
	content := []byte("sync:\n  interval: -5s\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sync.yml"), content, 0o600))

	_, err := NewSyncConfigHolder(Config{SyncConfigPath: dir})
	assert.Error(t, err)
}

func TestValidateSyncConfig(t *testing.T) {
	assert.NoError(t, validateSyncConfig(DefaultSyncConfig()))
	assert.Error(t, validateSyncConfig(SyncConfig{Interval: 0, HeartbeatGap: time.Minute}))
	assert.Error(t, validateSyncConfig(SyncConfig{Interval: time.Minute, HeartbeatGap: 0}))
}
