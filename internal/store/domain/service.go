package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type CreateCustomerRequest struct {
	Name           string
	Phone          string
	Latitude       *float64
	Longitude      *float64
	LocationStatus string
}

type UpdateCustomerLocationRequest struct {
	EntityID       int64
	Latitude       float64
	Longitude      float64
	LocationStatus string
}

type ListCustomersRequest struct {
	// Search matches a substring of the customer name.
	Search string
}

type BookingLineInput struct {
	ItemID    int64
	OrderQty  decimal.Decimal
	UnitPrice decimal.Decimal
}

type CreateBookingRequest struct {
	CustomerEntityID int64
	OrderDate        time.Time
	CreatedByID      string
	Lines            []BookingLineInput
}

type CreateReceiptRequest struct {
	CustomerEntityID int64
	Amount           decimal.Decimal
	CashBankName     string
	Note             *string
	Attachment       *string
}

type DateRange struct {
	From *time.Time
	To   *time.Time
}

// UnsyncedBatch is everything that must go out in the next sync request.
type UnsyncedBatch struct {
	Customers []Customer
	Bookings  []OrderBooking
	Receipts  []Receipt
}

func (b UnsyncedBatch) Empty() bool {
	return len(b.Customers) == 0 && len(b.Bookings) == 0 && len(b.Receipts) == 0
}

// Service is the Local Store: durable, transactional CRUD over one
// tenant's data. Insert/update paths are the only writers of synced=false;
// the Mark*Synced methods are the only writers of synced=true.
type Service interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	UpdateCustomerLocation(ctx context.Context, req UpdateCustomerLocationRequest) (Customer, error)
	MarkCustomerVisited(ctx context.Context, entityID int64, visited bool) (Customer, error)
	GetCustomer(ctx context.Context, entityID int64) (Customer, error)
	ListCustomers(ctx context.Context, req ListCustomersRequest) ([]Customer, error)
	UpsertServerCustomer(ctx context.Context, customer Customer) error

	CreateBooking(ctx context.Context, req CreateBookingRequest) (OrderBooking, error)
	AdjustBookingLine(ctx context.Context, bookingID, itemID int64, qtyDelta, unitPrice decimal.Decimal) (OrderBooking, error)
	DeleteBookingLine(ctx context.Context, bookingID, itemID int64) error
	GetBooking(ctx context.Context, bookingID int64) (OrderBooking, error)
	ListBookings(ctx context.Context, rng DateRange) ([]OrderBooking, error)

	CreateReceipt(ctx context.Context, req CreateReceiptRequest) (Receipt, error)
	ListReceipts(ctx context.Context, rng DateRange) ([]Receipt, error)

	RecentActivity(ctx context.Context, limit int) ([]ActivityLog, error)

	UnsyncedBatch(ctx context.Context) (UnsyncedBatch, error)
	MarkCustomersSynced(ctx context.Context, entityIDs []int64) error
	MarkBookingsSynced(ctx context.Context, bookingIDs []int64) error
	MarkReceiptsSynced(ctx context.Context, receiptIDs []int64) error

	GetAppConfig(ctx context.Context) (AppConfig, error)
	SaveAppConfig(ctx context.Context, cfg AppConfig) error
	ClearSession(ctx context.Context) error
}

var (
	ErrNotFound            = errors.New("not_found")
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrConstraintViolation = errors.New("constraint_violation")
	// ErrBookingSynced guards the editing window: lines of a booking the
	// server already acknowledged can no longer change.
	ErrBookingSynced = errors.New("booking_already_synced")
)
