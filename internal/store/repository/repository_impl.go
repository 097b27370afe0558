package repository

import (
	"context"
	"errors"

	"github.com/fieldkit/salesync/internal/store/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertCustomer(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) UpdateCustomer(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Save(customer).Error
}

func (r *repo) FindCustomer(ctx context.Context, db *gorm.DB, entityID int64) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).First(&customer, "entity_id = ?", entityID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repo) ListCustomers(ctx context.Context, db *gorm.DB, search string) ([]domain.Customer, error) {
	var customers []domain.Customer
	stmt := db.WithContext(ctx).Model(&domain.Customer{})
	if search != "" {
		stmt = stmt.Where("name LIKE ?", "%"+search+"%")
	}
	err := stmt.Order("name asc, entity_id asc").Find(&customers).Error
	return customers, err
}

func (r *repo) ListUnsyncedCustomers(ctx context.Context, db *gorm.DB) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := db.WithContext(ctx).
		Where("synced = ?", false).
		Order("created_at asc, entity_id asc").
		Find(&customers).Error
	return customers, err
}

func (r *repo) MarkCustomersSynced(ctx context.Context, db *gorm.DB, entityIDs []int64) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("entity_id IN ?", entityIDs).
		Update("synced", true).Error
}

// NextOrderNo advances the per-tenant order number sequence. Must run
// inside the transaction that inserts the booking so the number cannot be
// reused.
func (r *repo) NextOrderNo(ctx context.Context, db *gorm.DB) (int64, error) {
	var next int64
	err := db.WithContext(ctx).
		Raw(`SELECT COALESCE(MAX(order_no), 0) + 1 FROM order_bookings`).
		Scan(&next).Error
	return next, err
}

func (r *repo) InsertBooking(ctx context.Context, db *gorm.DB, booking *domain.OrderBooking) error {
	return db.WithContext(ctx).Create(booking).Error
}

func (r *repo) FindBooking(ctx context.Context, db *gorm.DB, bookingID int64) (*domain.OrderBooking, error) {
	var booking domain.OrderBooking
	err := db.WithContext(ctx).
		Preload("Lines").
		First(&booking, "booking_id = ?", bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repo) ListBookings(ctx context.Context, db *gorm.DB, rng domain.DateRange) ([]domain.OrderBooking, error) {
	var bookings []domain.OrderBooking
	stmt := db.WithContext(ctx).Model(&domain.OrderBooking{}).Preload("Lines")
	if rng.From != nil {
		stmt = stmt.Where("order_date >= ?", *rng.From)
	}
	if rng.To != nil {
		stmt = stmt.Where("order_date <= ?", *rng.To)
	}
	err := stmt.Order("order_date desc, booking_id desc").Find(&bookings).Error
	return bookings, err
}

func (r *repo) ListUnsyncedBookings(ctx context.Context, db *gorm.DB) ([]domain.OrderBooking, error) {
	var bookings []domain.OrderBooking
	err := db.WithContext(ctx).
		Preload("Lines").
		Where("synced = ?", false).
		Order("booking_id asc").
		Find(&bookings).Error
	return bookings, err
}

func (r *repo) MarkBookingsSynced(ctx context.Context, db *gorm.DB, bookingIDs []int64) error {
	if len(bookingIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.OrderBooking{}).
		Where("booking_id IN ?", bookingIDs).
		Update("synced", true).Error
}

func (r *repo) FindLine(ctx context.Context, db *gorm.DB, bookingID, itemID int64) (*domain.OrderBookingLine, error) {
	var line domain.OrderBookingLine
	err := db.WithContext(ctx).
		First(&line, "booking_id = ? AND item_id = ?", bookingID, itemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

func (r *repo) SaveLine(ctx context.Context, db *gorm.DB, line *domain.OrderBookingLine) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "booking_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"order_qty", "unit_price", "amount"}),
		}).
		Create(line).Error
}

func (r *repo) DeleteLine(ctx context.Context, db *gorm.DB, bookingID, itemID int64) error {
	return db.WithContext(ctx).
		Where("booking_id = ? AND item_id = ?", bookingID, itemID).
		Delete(&domain.OrderBookingLine{}).Error
}

func (r *repo) InsertReceipt(ctx context.Context, db *gorm.DB, receipt *domain.Receipt) error {
	return db.WithContext(ctx).Create(receipt).Error
}

func (r *repo) ListReceipts(ctx context.Context, db *gorm.DB, rng domain.DateRange) ([]domain.Receipt, error) {
	var receipts []domain.Receipt
	stmt := db.WithContext(ctx).Model(&domain.Receipt{})
	if rng.From != nil {
		stmt = stmt.Where("created_at >= ?", *rng.From)
	}
	if rng.To != nil {
		stmt = stmt.Where("created_at <= ?", *rng.To)
	}
	err := stmt.Order("created_at desc, id desc").Find(&receipts).Error
	return receipts, err
}

func (r *repo) ListUnsyncedReceipts(ctx context.Context, db *gorm.DB) ([]domain.Receipt, error) {
	var receipts []domain.Receipt
	err := db.WithContext(ctx).
		Where("synced = ?", false).
		Order("created_at asc, id asc").
		Find(&receipts).Error
	return receipts, err
}

func (r *repo) MarkReceiptsSynced(ctx context.Context, db *gorm.DB, receiptIDs []int64) error {
	if len(receiptIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Receipt{}).
		Where("id IN ?", receiptIDs).
		Update("synced", true).Error
}

func (r *repo) AppendActivity(ctx context.Context, db *gorm.DB, entry *domain.ActivityLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) RecentActivity(ctx context.Context, db *gorm.DB, limit int) ([]domain.ActivityLog, error) {
	var entries []domain.ActivityLog
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *repo) GetAppConfig(ctx context.Context, db *gorm.DB) (*domain.AppConfig, error) {
	var cfg domain.AppConfig
	err := db.WithContext(ctx).First(&cfg, "id = ?", domain.AppConfigRowID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repo) SaveAppConfig(ctx context.Context, db *gorm.DB, cfg *domain.AppConfig) error {
	cfg.ID = domain.AppConfigRowID
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(cfg).Error
}
