package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the data access layer of one tenant store. Every method
// takes the currently open handle explicitly; nothing in the repository
// may cache a handle across open/close boundaries.
type Repository interface {
	InsertCustomer(ctx context.Context, db *gorm.DB, customer *Customer) error
	UpdateCustomer(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindCustomer(ctx context.Context, db *gorm.DB, entityID int64) (*Customer, error)
	ListCustomers(ctx context.Context, db *gorm.DB, search string) ([]Customer, error)
	ListUnsyncedCustomers(ctx context.Context, db *gorm.DB) ([]Customer, error)
	MarkCustomersSynced(ctx context.Context, db *gorm.DB, entityIDs []int64) error

	NextOrderNo(ctx context.Context, db *gorm.DB) (int64, error)
	InsertBooking(ctx context.Context, db *gorm.DB, booking *OrderBooking) error
	FindBooking(ctx context.Context, db *gorm.DB, bookingID int64) (*OrderBooking, error)
	ListBookings(ctx context.Context, db *gorm.DB, rng DateRange) ([]OrderBooking, error)
	ListUnsyncedBookings(ctx context.Context, db *gorm.DB) ([]OrderBooking, error)
	MarkBookingsSynced(ctx context.Context, db *gorm.DB, bookingIDs []int64) error

	FindLine(ctx context.Context, db *gorm.DB, bookingID, itemID int64) (*OrderBookingLine, error)
	SaveLine(ctx context.Context, db *gorm.DB, line *OrderBookingLine) error
	DeleteLine(ctx context.Context, db *gorm.DB, bookingID, itemID int64) error

	InsertReceipt(ctx context.Context, db *gorm.DB, receipt *Receipt) error
	ListReceipts(ctx context.Context, db *gorm.DB, rng DateRange) ([]Receipt, error)
	ListUnsyncedReceipts(ctx context.Context, db *gorm.DB) ([]Receipt, error)
	MarkReceiptsSynced(ctx context.Context, db *gorm.DB, receiptIDs []int64) error

	AppendActivity(ctx context.Context, db *gorm.DB, entry *ActivityLog) error
	RecentActivity(ctx context.Context, db *gorm.DB, limit int) ([]ActivityLog, error)

	GetAppConfig(ctx context.Context, db *gorm.DB) (*AppConfig, error)
	SaveAppConfig(ctx context.Context, db *gorm.DB, cfg *AppConfig) error
}
