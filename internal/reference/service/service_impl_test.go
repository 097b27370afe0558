package service

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
	"github.com/fieldkit/salesync/internal/reference/domain"
	"github.com/fieldkit/salesync/internal/session"
	storerepository "github.com/fieldkit/salesync/internal/store/repository"
	storeservice "github.com/fieldkit/salesync/internal/store/service"
	"github.com/fieldkit/salesync/internal/tenant"
	"github.com/fieldkit/salesync/internal/transport"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReference(t *testing.T, catalog map[string]any) domain.Service {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/order-booking/check-connection":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"valid":  true,
				"entity": map[string]any{"entity_id": "ent-1"},
			})
		case "/api/order-booking/ob_login":
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		case "/api/graphql":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": catalog})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{DataDir: t.TempDir(), RequestTimeout: 2 * time.Second}

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

	payload := []byte(fmt.Sprintf(`{"server_origin":%q,"qr_code_data":"qr-1"}`, srv.URL))
	_, err = sessions.Login(context.Background(), payload)
	require.NoError(t, err)

	return New(Params{
		Log:      log,
		Clock:    fake,
		Tenants:  tenants,
		Sessions: sessions,
		Client:   client,
	})
}

func TestRefreshCatalog_ReplacesLocalTables(t *testing.T) {
	svc := newTestReference(t, map[string]any{
		"items": []map[string]any{
			{"item_id": 7, "code": "KB-01", "name": "Kopi Bubuk", "uom": "pak", "unit_price": "12500.00"},
			{"item_id": 8, "code": "GP-02", "name": "Gula Pasir", "uom": "kg", "unit_price": "16000"},
		},
		"cash_bank_accounts": []map[string]any{
			{"id": 1, "name": "Kas Besar", "kind": "cash"},
			{"id": 2, "name": "BCA Operasional", "kind": "bank"},
		},
	})
	ctx := context.Background()

	require.NoError(t, svc.RefreshCatalog(ctx))

	items, err := svc.ListItems(ctx, domain.ListItemsRequest{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Gula Pasir", items[0].Name)
	assert.True(t, items[1].UnitPrice.Equal(decimal.RequireFromString("12500")))

	accounts, err := svc.ListCashBankAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// a second refresh replaces rather than appends
	require.NoError(t, svc.RefreshCatalog(ctx))
	items, err = svc.ListItems(ctx, domain.ListItemsRequest{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestListItems_Search(t *testing.T) {
	svc := newTestReference(t, map[string]any{
		"items": []map[string]any{
			{"item_id": 7, "code": "KB-01", "name": "Kopi Bubuk", "uom": "pak", "unit_price": "12500"},
			{"item_id": 8, "code": "GP-02", "name": "Gula Pasir", "uom": "kg", "unit_price": "16000"},
		},
	})
	ctx := context.Background()
	require.NoError(t, svc.RefreshCatalog(ctx))

	byName, err := svc.ListItems(ctx, domain.ListItemsRequest{Search: "kopi"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, int64(7), byName[0].ItemID)

	byCode, err := svc.ListItems(ctx, domain.ListItemsRequest{Search: "GP-02"})
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	assert.Equal(t, int64(8), byCode[0].ItemID)
}

func TestRefreshCatalog_BadPriceRejected(t *testing.T) {
	svc := newTestReference(t, map[string]any{
		"items": []map[string]any{
			{"item_id": 7, "code": "KB-01", "name": "Kopi Bubuk", "uom": "pak", "unit_price": "not-a-number"},
		},
	})

	err := svc.RefreshCatalog(context.Background())
	assert.Error(t, err)
}
