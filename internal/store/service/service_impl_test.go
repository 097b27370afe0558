package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/config"
	"github.com/fieldkit/salesync/internal/store/domain"
	"github.com/fieldkit/salesync/internal/store/repository"
	"github.com/fieldkit/salesync/internal/tenant"
	"github.com/fieldkit/salesync/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	log := zap.NewNop()
	mgr := tenant.New(tenant.Params{
		Config: config.Config{DataDir: t.TempDir()},
		Log:    log,
	})
	key := tenantctx.Tenant{EntityID: "ent-1", ServerOrigin: "http://server.local"}
	require.NoError(t, mgr.Open(context.Background(), key))
	t.Cleanup(func() { _ = mgr.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		Tenants: mgr,
		Log:     log,
		GenID:   node,
		Clock:   fake,
		Repo:    repository.Provide(),
	})
	return svc, fake
}

func seedCustomer(t *testing.T, svc domain.Service, name string) domain.Customer {
	t.Helper()
	customer, err := svc.CreateCustomer(context.Background(), domain.CreateCustomerRequest{
		Name:  name,
		Phone: "555-0100",
	})
	require.NoError(t, err)
	return customer
}

func TestCreateCustomer_StartsDirty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	customer, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Name: "Toko Jaya", Phone: "555-1"})
	require.NoError(t, err)
	assert.NotZero(t, customer.EntityID)
	assert.False(t, customer.Synced)

	got, err := svc.GetCustomer(ctx, customer.EntityID)
	require.NoError(t, err)
	assert.Equal(t, "Toko Jaya", got.Name)
	assert.False(t, got.Synced)
}

func TestCreateCustomer_RequiresName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateCustomer(context.Background(), domain.CreateCustomerRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestUpdateCustomerLocation_ReDirtiesSyncedRow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	customer := seedCustomer(t, svc, "Warung Sari")
	require.NoError(t, svc.MarkCustomersSynced(ctx, []int64{customer.EntityID}))

	updated, err := svc.UpdateCustomerLocation(ctx, domain.UpdateCustomerLocationRequest{
		EntityID:       customer.EntityID,
		Latitude:       -6.2,
		Longitude:      106.8,
		LocationStatus: "confirmed",
	})
	require.NoError(t, err)
	assert.False(t, updated.Synced)
	require.NotNil(t, updated.Latitude)
	assert.InDelta(t, -6.2, *updated.Latitude, 1e-9)
}

func TestListCustomers_SearchByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	seedCustomer(t, svc, "Toko Makmur")
	seedCustomer(t, svc, "Warung Sari")

	got, err := svc.ListCustomers(ctx, domain.ListCustomersRequest{Search: "makmur"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Toko Makmur", got[0].Name)
}

func TestCreateBooking_SequentialOrderNoAndActivity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := seedCustomer(t, svc, "Toko Jaya")

	first, err := svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(2500)},
			{ItemID: 11, OrderQty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(12000)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.OrderNo)
	assert.False(t, first.Synced)

	second, err := svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(2500)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.OrderNo)

	activity, err := svc.RecentActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, domain.ActionBookingCreated, activity[0].Action)
}

func TestCreateBooking_MergesDuplicateItems(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := seedCustomer(t, svc, "Toko Jaya")

	booking, err := svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(2500)},
			{ItemID: 10, OrderQty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(2500)},
		},
	})
	require.NoError(t, err)
	require.Len(t, booking.Lines, 1)
	assert.True(t, booking.Lines[0].OrderQty.Equal(decimal.NewFromInt(5)))
	assert.True(t, booking.Lines[0].Amount.Equal(decimal.NewFromInt(12500)))
}

func TestCreateBooking_RejectsBadLines(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := seedCustomer(t, svc, "Toko Jaya")

	_, err := svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.Zero, UnitPrice: decimal.NewFromInt(100)},
		},
	})
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)

	_, err = svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: 999999,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdjustBookingLine_AmountTracksQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := seedCustomer(t, svc, "Toko Jaya")

	booking, err := svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(2500)},
		},
	})
	require.NoError(t, err)

	got, err := svc.AdjustBookingLine(ctx, booking.BookingID, 10, decimal.NewFromInt(2), decimal.Zero)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].OrderQty.Equal(decimal.NewFromInt(5)))
	assert.True(t, got.Lines[0].Amount.Equal(decimal.NewFromInt(12500)))

	// dropping to zero removes the line
	got, err = svc.AdjustBookingLine(ctx, booking.BookingID, 10, decimal.NewFromInt(-5), decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, got.Lines)
}

func TestAdjustBookingLine_NegativeQuantityRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := seedCustomer(t, svc, "Toko Jaya")

	booking, err := svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)

	_, err = svc.AdjustBookingLine(ctx, booking.BookingID, 10, decimal.NewFromInt(-3), decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)

	got, err := svc.GetBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].OrderQty.Equal(decimal.NewFromInt(2)))
}

func TestAdjustBookingLine_SyncedBookingFrozen(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := seedCustomer(t, svc, "Toko Jaya")

	booking, err := svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)
	require.NoError(t, svc.MarkBookingsSynced(ctx, []int64{booking.BookingID}))

	_, err = svc.AdjustBookingLine(ctx, booking.BookingID, 10, decimal.NewFromInt(1), decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrBookingSynced)

	err = svc.DeleteBookingLine(ctx, booking.BookingID, 10)
	assert.ErrorIs(t, err, domain.ErrBookingSynced)
}

func TestCreateReceipt_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := seedCustomer(t, svc, "Toko Jaya")

	_, err := svc.CreateReceipt(ctx, domain.CreateReceiptRequest{
		CustomerEntityID: customer.EntityID,
		Amount:           decimal.Zero,
		CashBankName:     "Kas Besar",
	})
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)

	_, err = svc.CreateReceipt(ctx, domain.CreateReceiptRequest{
		CustomerEntityID: customer.EntityID,
		Amount:           decimal.NewFromInt(50000),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	receipt, err := svc.CreateReceipt(ctx, domain.CreateReceiptRequest{
		CustomerEntityID: customer.EntityID,
		Amount:           decimal.NewFromInt(50000),
		CashBankName:     "Kas Besar",
	})
	require.NoError(t, err)
	assert.False(t, receipt.Synced)
	assert.NotZero(t, receipt.ID)
}

func TestUnsyncedBatch_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	customer := seedCustomer(t, svc, "Toko Jaya")

	booking, err := svc.CreateBooking(ctx, domain.CreateBookingRequest{
		CustomerEntityID: customer.EntityID,
		Lines: []domain.BookingLineInput{
			{ItemID: 10, OrderQty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)

	receipt, err := svc.CreateReceipt(ctx, domain.CreateReceiptRequest{
		CustomerEntityID: customer.EntityID,
		Amount:           decimal.NewFromInt(100),
		CashBankName:     "Kas Besar",
	})
	require.NoError(t, err)

	batch, err := svc.UnsyncedBatch(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Customers, 1)
	require.Len(t, batch.Bookings, 1)
	assert.Len(t, batch.Bookings[0].Lines, 1)
	assert.Len(t, batch.Receipts, 1)

	require.NoError(t, svc.MarkCustomersSynced(ctx, []int64{customer.EntityID}))
	require.NoError(t, svc.MarkBookingsSynced(ctx, []int64{booking.BookingID}))
	require.NoError(t, svc.MarkReceiptsSynced(ctx, []int64{receipt.ID}))

	batch, err = svc.UnsyncedBatch(ctx)
	require.NoError(t, err)
	assert.True(t, batch.Empty())
}

func TestUpsertServerCustomer_NoDuplicateOnMergeBack(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	local, err := svc.CreateCustomer(ctx, domain.CreateCustomerRequest{Name: "Acme", Phone: "555-1"})
	require.NoError(t, err)

	// server echoes the same entity back with canonical fields
	err = svc.UpsertServerCustomer(ctx, domain.Customer{
		EntityID: local.EntityID,
		Name:     "Acme Corp",
		Phone:    "555-1",
		Visited:  true,
	})
	require.NoError(t, err)

	all, err := svc.ListCustomers(ctx, domain.ListCustomersRequest{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Acme Corp", all[0].Name)
	assert.True(t, all[0].Synced)
	assert.True(t, all[0].Visited)
}

func TestUpsertServerCustomer_InsertsUnknownRow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.UpsertServerCustomer(ctx, domain.Customer{
		EntityID: 42,
		Name:     "Acme",
		Phone:    "555-1",
	})
	require.NoError(t, err)

	got, err := svc.GetCustomer(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.True(t, got.Synced)

	batch, err := svc.UnsyncedBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch.Customers)
}

func TestAppConfig_SessionLifecycle(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	sessionID := "483920"
	require.NoError(t, svc.SaveAppConfig(ctx, domain.AppConfig{
		SessionID:   &sessionID,
		EntityID:    "ent-1",
		CashierName: "Budi",
	}))

	cfg, err := svc.GetAppConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg.SessionID)
	assert.Equal(t, sessionID, *cfg.SessionID)
	assert.WithinDuration(t, fake.Now(), cfg.UpdatedAt, time.Second)

	require.NoError(t, svc.ClearSession(ctx))

	cfg, err = svc.GetAppConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg.SessionID)
	assert.Equal(t, "Budi", cfg.CashierName)
}
