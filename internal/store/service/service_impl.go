package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/store/domain"
	"github.com/fieldkit/salesync/internal/tenant"
	pkgdb "github.com/fieldkit/salesync/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Tenants *tenant.Manager
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
}

type Service struct {
	tenants *tenant.Manager
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		tenants: p.Tenants,
		log:     p.Log.Named("store.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
	}
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidRequest
	}

	now := s.clock.Now()
	customer := domain.Customer{
		EntityID:       s.genID.Generate().Int64(),
		Name:           name,
		Phone:          strings.TrimSpace(req.Phone),
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		LocationStatus: req.LocationStatus,
		Synced:         false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.InsertCustomer(ctx, handle, &customer); err != nil {
		return domain.Customer{}, s.mapWriteErr(err)
	}
	return customer, nil
}

func (s *Service) UpdateCustomerLocation(ctx context.Context, req domain.UpdateCustomerLocationRequest) (domain.Customer, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.repo.FindCustomer(ctx, handle, req.EntityID)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	lat, lng := req.Latitude, req.Longitude
	customer.Latitude = &lat
	customer.Longitude = &lng
	customer.LocationStatus = req.LocationStatus
	customer.Synced = false
	customer.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateCustomer(ctx, handle, customer); err != nil {
		return domain.Customer{}, s.mapWriteErr(err)
	}
	return *customer, nil
}

func (s *Service) MarkCustomerVisited(ctx context.Context, entityID int64, visited bool) (domain.Customer, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.repo.FindCustomer(ctx, handle, entityID)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	customer.Visited = visited
	customer.Synced = false
	customer.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateCustomer(ctx, handle, customer); err != nil {
		return domain.Customer{}, s.mapWriteErr(err)
	}
	return *customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, entityID int64) (domain.Customer, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.repo.FindCustomer(ctx, handle, entityID)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, req domain.ListCustomersRequest) ([]domain.Customer, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, handle, strings.TrimSpace(req.Search))
}

// UpsertServerCustomer applies one server-pushed canonical row:
// insert-if-absent, then overwrite the fields the server also mutates.
// Rows written here are already acknowledged, so they land synced.
func (s *Service) UpsertServerCustomer(ctx context.Context, pushed domain.Customer) error {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindCustomer(ctx, handle, pushed.EntityID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if existing == nil {
		pushed.Synced = true
		pushed.CreatedAt = now
		pushed.UpdatedAt = now
		return s.mapWriteErr(s.repo.InsertCustomer(ctx, handle, &pushed))
	}

	existing.Name = pushed.Name
	existing.Phone = pushed.Phone
	if pushed.Latitude != nil {
		existing.Latitude = pushed.Latitude
	}
	if pushed.Longitude != nil {
		existing.Longitude = pushed.Longitude
	}
	if pushed.LocationStatus != "" {
		existing.LocationStatus = pushed.LocationStatus
	}
	existing.Visited = pushed.Visited
	if pushed.Metadata != nil {
		existing.Metadata = pushed.Metadata
	}
	existing.Synced = true
	existing.UpdatedAt = now

	return s.mapWriteErr(s.repo.UpdateCustomer(ctx, handle, existing))
}

func (s *Service) CreateBooking(ctx context.Context, req domain.CreateBookingRequest) (domain.OrderBooking, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.OrderBooking{}, err
	}

	lines, total, err := buildLines(req.Lines)
	if err != nil {
		return domain.OrderBooking{}, err
	}

	customer, err := s.repo.FindCustomer(ctx, handle, req.CustomerEntityID)
	if err != nil {
		return domain.OrderBooking{}, err
	}
	if customer == nil {
		return domain.OrderBooking{}, domain.ErrNotFound
	}

	now := s.clock.Now()
	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}

	booking := domain.OrderBooking{
		CustomerEntityID: req.CustomerEntityID,
		OrderDate:        orderDate,
		CreatedByID:      req.CreatedByID,
		Synced:           false,
		CreatedAt:        now,
		UpdatedAt:        now,
		Lines:            lines,
	}

	err = handle.Transaction(func(tx *gorm.DB) error {
		orderNo, err := s.repo.NextOrderNo(ctx, tx)
		if err != nil {
			return err
		}
		booking.OrderNo = orderNo

		if err := s.repo.InsertBooking(ctx, tx, &booking); err != nil {
			return err
		}

		return s.repo.AppendActivity(ctx, tx, &domain.ActivityLog{
			ID:           s.genID.Generate().Int64(),
			Action:       domain.ActionBookingCreated,
			BookingID:    booking.BookingID,
			OrderNo:      booking.OrderNo,
			CustomerName: customer.Name,
			TotalAmount:  total,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return domain.OrderBooking{}, s.mapWriteErr(err)
	}

	return booking, nil
}

// AdjustBookingLine adds qtyDelta to the line for (booking, item),
// creating the line when absent and removing it when the quantity drops
// to zero. The amount is recomputed so it always equals qty * unit price.
func (s *Service) AdjustBookingLine(ctx context.Context, bookingID, itemID int64, qtyDelta, unitPrice decimal.Decimal) (domain.OrderBooking, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.OrderBooking{}, err
	}

	err = handle.Transaction(func(tx *gorm.DB) error {
		booking, err := s.repo.FindBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return domain.ErrNotFound
		}
		if booking.Synced {
			return domain.ErrBookingSynced
		}

		line, err := s.repo.FindLine(ctx, tx, bookingID, itemID)
		if err != nil {
			return err
		}

		price := unitPrice
		qty := qtyDelta
		if line != nil {
			qty = line.OrderQty.Add(qtyDelta)
			if price.IsZero() {
				price = line.UnitPrice
			}
		}

		switch {
		case qty.IsNegative():
			return domain.ErrConstraintViolation
		case qty.IsZero():
			return s.repo.DeleteLine(ctx, tx, bookingID, itemID)
		}

		if price.IsNegative() || price.IsZero() {
			return domain.ErrConstraintViolation
		}

		return s.repo.SaveLine(ctx, tx, &domain.OrderBookingLine{
			BookingID: bookingID,
			ItemID:    itemID,
			OrderQty:  qty,
			UnitPrice: price,
			Amount:    qty.Mul(price),
		})
	})
	if err != nil {
		return domain.OrderBooking{}, s.mapWriteErr(err)
	}

	return s.GetBooking(ctx, bookingID)
}

func (s *Service) DeleteBookingLine(ctx context.Context, bookingID, itemID int64) error {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return err
	}

	return handle.Transaction(func(tx *gorm.DB) error {
		booking, err := s.repo.FindBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return domain.ErrNotFound
		}
		if booking.Synced {
			return domain.ErrBookingSynced
		}
		return s.repo.DeleteLine(ctx, tx, bookingID, itemID)
	})
}

func (s *Service) GetBooking(ctx context.Context, bookingID int64) (domain.OrderBooking, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.OrderBooking{}, err
	}

	booking, err := s.repo.FindBooking(ctx, handle, bookingID)
	if err != nil {
		return domain.OrderBooking{}, err
	}
	if booking == nil {
		return domain.OrderBooking{}, domain.ErrNotFound
	}
	return *booking, nil
}

func (s *Service) ListBookings(ctx context.Context, rng domain.DateRange) ([]domain.OrderBooking, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBookings(ctx, handle, rng)
}

func (s *Service) CreateReceipt(ctx context.Context, req domain.CreateReceiptRequest) (domain.Receipt, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}

	if !req.Amount.IsPositive() {
		return domain.Receipt{}, domain.ErrConstraintViolation
	}
	if strings.TrimSpace(req.CashBankName) == "" {
		return domain.Receipt{}, domain.ErrInvalidRequest
	}

	customer, err := s.repo.FindCustomer(ctx, handle, req.CustomerEntityID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if customer == nil {
		return domain.Receipt{}, domain.ErrNotFound
	}

	receipt := domain.Receipt{
		ID:               s.genID.Generate().Int64(),
		CustomerEntityID: req.CustomerEntityID,
		Amount:           req.Amount,
		CashBankName:     strings.TrimSpace(req.CashBankName),
		Note:             req.Note,
		Attachment:       req.Attachment,
		Synced:           false,
		CreatedAt:        s.clock.Now(),
	}

	if err := s.repo.InsertReceipt(ctx, handle, &receipt); err != nil {
		return domain.Receipt{}, s.mapWriteErr(err)
	}
	return receipt, nil
}

func (s *Service) ListReceipts(ctx context.Context, rng domain.DateRange) ([]domain.Receipt, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReceipts(ctx, handle, rng)
}

func (s *Service) RecentActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.RecentActivity(ctx, handle, limit)
}

func (s *Service) UnsyncedBatch(ctx context.Context) (domain.UnsyncedBatch, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.UnsyncedBatch{}, err
	}

	customers, err := s.repo.ListUnsyncedCustomers(ctx, handle)
	if err != nil {
		return domain.UnsyncedBatch{}, err
	}
	bookings, err := s.repo.ListUnsyncedBookings(ctx, handle)
	if err != nil {
		return domain.UnsyncedBatch{}, err
	}
	receipts, err := s.repo.ListUnsyncedReceipts(ctx, handle)
	if err != nil {
		return domain.UnsyncedBatch{}, err
	}

	return domain.UnsyncedBatch{
		Customers: customers,
		Bookings:  bookings,
		Receipts:  receipts,
	}, nil
}

func (s *Service) MarkCustomersSynced(ctx context.Context, entityIDs []int64) error {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return err
	}
	return handle.Transaction(func(tx *gorm.DB) error {
		return s.repo.MarkCustomersSynced(ctx, tx, entityIDs)
	})
}

func (s *Service) MarkBookingsSynced(ctx context.Context, bookingIDs []int64) error {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return err
	}
	return handle.Transaction(func(tx *gorm.DB) error {
		return s.repo.MarkBookingsSynced(ctx, tx, bookingIDs)
	})
}

func (s *Service) MarkReceiptsSynced(ctx context.Context, receiptIDs []int64) error {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return err
	}
	return handle.Transaction(func(tx *gorm.DB) error {
		return s.repo.MarkReceiptsSynced(ctx, tx, receiptIDs)
	})
}

func (s *Service) GetAppConfig(ctx context.Context) (domain.AppConfig, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return domain.AppConfig{}, err
	}

	cfg, err := s.repo.GetAppConfig(ctx, handle)
	if err != nil {
		return domain.AppConfig{}, err
	}
	if cfg == nil {
		return domain.AppConfig{}, domain.ErrNotFound
	}
	return *cfg, nil
}

func (s *Service) SaveAppConfig(ctx context.Context, cfg domain.AppConfig) error {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return err
	}
	cfg.UpdatedAt = s.clock.Now()
	return s.repo.SaveAppConfig(ctx, handle, &cfg)
}

func (s *Service) ClearSession(ctx context.Context) error {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return err
	}

	cfg, err := s.repo.GetAppConfig(ctx, handle)
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}

	cfg.SessionID = nil
	cfg.UpdatedAt = s.clock.Now()
	return s.repo.SaveAppConfig(ctx, handle, cfg)
}

// buildLines validates the line inputs and merges duplicate items by
// summing quantities; the returned total backs the activity entry.
func buildLines(inputs []domain.BookingLineInput) ([]domain.OrderBookingLine, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, domain.ErrInvalidRequest
	}

	merged := make(map[int64]*domain.OrderBookingLine, len(inputs))
	order := make([]int64, 0, len(inputs))
	for _, input := range inputs {
		if !input.OrderQty.IsPositive() || input.UnitPrice.IsNegative() {
			return nil, decimal.Zero, domain.ErrConstraintViolation
		}
		if existing, ok := merged[input.ItemID]; ok {
			existing.OrderQty = existing.OrderQty.Add(input.OrderQty)
			existing.Amount = existing.OrderQty.Mul(existing.UnitPrice)
			continue
		}
		merged[input.ItemID] = &domain.OrderBookingLine{
			ItemID:    input.ItemID,
			OrderQty:  input.OrderQty,
			UnitPrice: input.UnitPrice,
			Amount:    input.OrderQty.Mul(input.UnitPrice),
		}
		order = append(order, input.ItemID)
	}

	lines := make([]domain.OrderBookingLine, 0, len(merged))
	total := decimal.Zero
	for _, itemID := range order {
		lines = append(lines, *merged[itemID])
		total = total.Add(merged[itemID].Amount)
	}
	return lines, total, nil
}

func (s *Service) mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if pkgdb.IsConstraintErr(err) {
		return fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
	}
	return err
}
