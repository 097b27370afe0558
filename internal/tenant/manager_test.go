package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/fieldkit/salesync/internal/config"
	refdomain "github.com/fieldkit/salesync/internal/reference/domain"
	storedomain "github.com/fieldkit/salesync/internal/store/domain"
	"github.com/fieldkit/salesync/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr := New(Params{
		Config: config.Config{DataDir: t.TempDir()},
		Log:    zap.NewNop(),
	})
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func testKey(entityID string) tenantctx.Tenant {
	return tenantctx.Tenant{EntityID: entityID, ServerOrigin: "http://server.local"}
}

func writeCustomer(t *testing.T, mgr *Manager, entityID int64, name string) {
	t.Helper()
	handle, err := mgr.Handle(context.Background())
	require.NoError(t, err)
	require.NoError(t, handle.Create(&storedomain.Customer{
		EntityID:  entityID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}).Error)
}

func countCustomers(t *testing.T, mgr *Manager) int64 {
	t.Helper()
	handle, err := mgr.Handle(context.Background())
	require.NoError(t, err)
	var n int64
	require.NoError(t, handle.Model(&storedomain.Customer{}).Count(&n).Error)
	return n
}

func TestHandle_NoOpenStore(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.Handle(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveStore)
}

func TestOpen_RunsMigrations(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.Open(context.Background(), testKey("ent-a")))

	handle, err := mgr.Handle(context.Background())
	require.NoError(t, err)

	for _, table := range []string{"customers", "order_bookings", "order_booking_lines", "receipts", "activity_logs", "app_config", "items", "cash_bank_accounts"} {
		assert.True(t, handle.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestOpen_SchemaAcceptsCatalogModels(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.Open(context.Background(), testKey("ent-a")))

	handle, err := mgr.Handle(context.Background())
	require.NoError(t, err)

	require.NoError(t, handle.Create(&refdomain.Item{
		ItemID:    101,
		Code:      "GP-01",
		Name:      "Gula Pasir",
		UOM:       "kg",
		UnitPrice: decimal.NewFromInt(14500),
		UpdatedAt: time.Now().UTC(),
	}).Error)
	require.NoError(t, handle.Create(&refdomain.CashBankAccount{
		ID:        7,
		Name:      "Kas Besar",
		Kind:      "cash",
		UpdatedAt: time.Now().UTC(),
	}).Error)

	var item refdomain.Item
	require.NoError(t, handle.First(&item, "item_id = ?", 101).Error)
	assert.Equal(t, "kg", item.UOM)
	assert.True(t, item.UnitPrice.Equal(decimal.NewFromInt(14500)))
}

func TestOpen_SameKeyIsNoOp(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	key := testKey("ent-a")

	require.NoError(t, mgr.Open(ctx, key))
	writeCustomer(t, mgr, 1, "Toko Jaya")

	require.NoError(t, mgr.Open(ctx, key))
	assert.Equal(t, int64(1), countCustomers(t, mgr))
}

func TestOpen_SwitchingTenantsIsolatesData(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Open(ctx, testKey("ent-a")))
	writeCustomer(t, mgr, 1, "Only In A")

	require.NoError(t, mgr.Open(ctx, testKey("ent-b")))
	assert.Equal(t, int64(0), countCustomers(t, mgr))

	// returning to A sees its data again
	require.NoError(t, mgr.Open(ctx, testKey("ent-a")))
	assert.Equal(t, int64(1), countCustomers(t, mgr))
}

func TestHandle_RejectsMismatchedContextKey(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, mgr.Open(ctx, testKey("ent-a")))

	_, err := mgr.Handle(tenantctx.WithTenant(ctx, testKey("ent-b")))
	assert.ErrorIs(t, err, ErrNoActiveStore)

	_, err = mgr.Handle(tenantctx.WithTenant(ctx, testKey("ent-a")))
	assert.NoError(t, err)
}

func TestDelete_RequiresClosedStore(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	key := testKey("ent-a")

	require.NoError(t, mgr.Open(ctx, key))
	writeCustomer(t, mgr, 1, "Toko Jaya")

	assert.ErrorIs(t, mgr.Delete(ctx, key), ErrStoreOpen)

	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Delete(ctx, key))

	// reopening creates a fresh, empty store
	require.NoError(t, mgr.Open(ctx, key))
	assert.Equal(t, int64(0), countCustomers(t, mgr))
}

func TestClose_Idempotent(t *testing.T) {
	mgr := newTestManager(t)

	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Open(context.Background(), testKey("ent-a")))
	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Close())

	_, ok := mgr.Current()
	assert.False(t, ok)
}
