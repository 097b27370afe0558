package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/config"
	"github.com/fieldkit/salesync/internal/devicestate"
	"github.com/fieldkit/salesync/internal/session"
	storerepository "github.com/fieldkit/salesync/internal/store/repository"
	storeservice "github.com/fieldkit/salesync/internal/store/service"
	"github.com/fieldkit/salesync/internal/syncengine"
	"github.com/fieldkit/salesync/internal/tenant"
	"github.com/fieldkit/salesync/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubServer struct {
	heartbeats int
	syncs      int
}

func newTestScheduler(t *testing.T) (*Scheduler, *session.Manager, *clock.FakeClock, *stubServer, string) {
	t.Helper()

	stub := &stubServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/order-booking/check-connection":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if lastSeen, _ := body["last_seen"].(string); lastSeen != "" {
				stub.heartbeats++
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"valid":  true,
				"entity": map[string]any{"entity_id": "ent-1"},
			})
		case "/api/order-booking/ob_login":
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		case "/api/order-booking/sync":
			stub.syncs++
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{
		DataDir:        t.TempDir(),
		RequestTimeout: 2 * time.Second,
		SyncConfigPath: t.TempDir(),
	}

	device, err := devicestate.New(devicestate.Params{Config: cfg, Log: log, Clock: fake})
	require.NoError(t, err)
	tenants := tenant.New(tenant.Params{Config: cfg, Log: log})
	t.Cleanup(func() { _ = tenants.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	store := storeservice.New(storeservice.Params{
		Tenants: tenants,
		Log:     log,
		GenID:   node,
		Clock:   fake,
		Repo:    storerepository.Provide(),
	})

	client := transport.New(transport.Params{Config: cfg, Log: log})
	sessions := session.NewManager(session.Params{
		Log:     log,
		Clock:   fake,
		Device:  device,
		Tenants: tenants,
		Store:   store,
		Client:  client,
	})
	engine := syncengine.New(syncengine.Params{
		Log:      log,
		Clock:    fake,
		Store:    store,
		Sessions: sessions,
		Client:   client,
	})

	holder, err := config.NewSyncConfigHolder(cfg)
	require.NoError(t, err)

	sched := New(Params{
		Log:      log,
		Clock:    fake,
		Sync:     holder,
		Sessions: sessions,
		Engine:   engine,
	})
	return sched, sessions, fake, stub, srv.URL
}

func TestRunOnce_SkipsWhenLoggedOut(t *testing.T) {
	sched, _, _, stub, _ := newTestScheduler(t)

	sched.RunOnce(context.Background())

	assert.Zero(t, stub.heartbeats)
	assert.Zero(t, stub.syncs)
}

func TestRunOnce_HeartbeatRespectsGap(t *testing.T) {
	sched, sessions, fake, stub, origin := newTestScheduler(t)
	ctx := context.Background()

	payload := []byte(fmt.Sprintf(`{"server_origin":%q,"qr_code_data":"qr-1"}`, origin))
	_, err := sessions.Login(ctx, payload)
	require.NoError(t, err)

	sched.RunOnce(ctx)
	assert.Equal(t, 1, stub.heartbeats)

	// inside the gap, no second heartbeat
	fake.Advance(time.Minute)
	sched.RunOnce(ctx)
	assert.Equal(t, 1, stub.heartbeats)

	fake.Advance(5 * time.Minute)
	sched.RunOnce(ctx)
	assert.Equal(t, 2, stub.heartbeats)
}

func TestRunOnce_EmptyStoreStaysOffTheWire(t *testing.T) {
	sched, sessions, _, stub, origin := newTestScheduler(t)
	ctx := context.Background()

	payload := []byte(fmt.Sprintf(`{"server_origin":%q,"qr_code_data":"qr-1"}`, origin))
	_, err := sessions.Login(ctx, payload)
	require.NoError(t, err)

	sched.RunOnce(ctx)
	assert.Zero(t, stub.syncs)
}
