package devicestate

import (
	"testing"
	"time"

	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, dataDir string) *Service {
	t.Helper()
	svc, err := New(Params{
		Config: config.Config{DataDir: dataDir},
		Log:    zap.NewNop(),
		Clock:  clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return svc
}

func TestNew_MintsDeviceIDOnce(t *testing.T) {
	dir := t.TempDir()

	first := newTestService(t, dir)
	deviceID := first.Get().DeviceID
	require.NotEmpty(t, deviceID)

	// a second service over the same directory sees the same installation
	second := newTestService(t, dir)
	assert.Equal(t, deviceID, second.Get().DeviceID)
}

func TestSet_PersistsSessionAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	svc := newTestService(t, dir)
	require.NoError(t, svc.Set("483920", "ent-1", "http://server.local"))

	reloaded := newTestService(t, dir)
	state := reloaded.Get()
	assert.True(t, state.LoggedIn)
	assert.Equal(t, "483920", state.SessionID)
	assert.Equal(t, "ent-1", state.EntityID)
	assert.Equal(t, "http://server.local", state.ServerOrigin)
}

func TestClear_KeepsDeviceID(t *testing.T) {
	svc := newTestService(t, t.TempDir())
	deviceID := svc.Get().DeviceID

	require.NoError(t, svc.Set("483920", "ent-1", "http://server.local"))
	require.NoError(t, svc.Clear())

	state := svc.Get()
	assert.False(t, state.LoggedIn)
	assert.Empty(t, state.SessionID)
	assert.Empty(t, state.EntityID)
	assert.Empty(t, state.ServerOrigin)
	assert.Equal(t, deviceID, state.DeviceID)
}

func TestSetLoggedIn_FlipsOnlyFlag(t *testing.T) {
	svc := newTestService(t, t.TempDir())
	require.NoError(t, svc.Set("483920", "ent-1", "http://server.local"))

	require.NoError(t, svc.SetLoggedIn(false))

	state := svc.Get()
	assert.False(t, state.LoggedIn)
	assert.Equal(t, "483920", state.SessionID)
}
