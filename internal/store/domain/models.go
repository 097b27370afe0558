package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Customer is a party visited by the field representative. Rows are
// created locally (pending sync) or upserted from a server push; they are
// never hard-deleted, only superseded by newer server state.
type Customer struct {
	EntityID       int64           `gorm:"primaryKey;column:entity_id" json:"entity_id"`
	Name           string          `gorm:"not null;index" json:"name"`
	Phone          string          `gorm:"column:phone" json:"phone"`
	Latitude       *float64        `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude      *float64        `gorm:"column:longitude" json:"longitude,omitempty"`
	LocationStatus string          `gorm:"column:location_status" json:"location_status,omitempty"`
	Visited        bool            `gorm:"not null;default:false" json:"visited"`
	Synced         bool            `gorm:"not null;default:false;index" json:"synced"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
	Metadata       datatypes.JSONMap `gorm:"not null;default:'{}'" json:"metadata,omitempty"`
}

func (Customer) TableName() string { return "customers" }

// OrderBooking holds one order taken in the field. BookingID is a local
// auto-increment; OrderNo comes from the per-tenant sequence and stays
// stable through server confirmation.
type OrderBooking struct {
	BookingID        int64              `gorm:"primaryKey;autoIncrement;column:booking_id" json:"booking_id"`
	OrderNo          int64              `gorm:"not null;uniqueIndex;column:order_no" json:"order_no"`
	CustomerEntityID int64              `gorm:"not null;index;column:customer_entity_id" json:"customer_entity_id"`
	OrderDate        time.Time          `gorm:"not null;index" json:"order_date"`
	CreatedByID      string             `gorm:"column:created_by_id" json:"created_by_id"`
	Synced           bool               `gorm:"not null;default:false;index" json:"synced"`
	CreatedAt        time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null" json:"updated_at"`
	Lines            []OrderBookingLine `gorm:"foreignKey:BookingID;references:BookingID" json:"lines,omitempty"`
}

func (OrderBooking) TableName() string { return "order_bookings" }

// OrderBookingLine is one item on a booking. At most one line exists per
// (booking, item) pair; amount always equals order_qty * unit_price.
type OrderBookingLine struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID int64           `gorm:"not null;uniqueIndex:ux_booking_item;column:booking_id" json:"booking_id"`
	ItemID    int64           `gorm:"not null;uniqueIndex:ux_booking_item;column:item_id" json:"item_id"`
	OrderQty  decimal.Decimal `gorm:"type:decimal(20,4);not null;column:order_qty" json:"order_qty"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null;column:unit_price" json:"unit_price"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
}

func (OrderBookingLine) TableName() string { return "order_booking_lines" }

// Receipt records a customer payment collected in the field.
type Receipt struct {
	ID               int64           `gorm:"primaryKey;column:id" json:"id"`
	CustomerEntityID int64           `gorm:"not null;index;column:customer_entity_id" json:"customer_entity_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CashBankName     string          `gorm:"not null;column:cash_bank_name" json:"cash_bank_name"`
	Note             *string         `gorm:"column:note" json:"note,omitempty"`
	Attachment       *string         `gorm:"column:attachment" json:"attachment,omitempty"`
	Synced           bool            `gorm:"not null;default:false;index" json:"synced"`
	CreatedAt        time.Time       `gorm:"not null;index" json:"created_at"`
}

func (Receipt) TableName() string { return "receipts" }

// ActivityLog is a local append-only projection backing the recent
// activity view. It is never sent to the server.
type ActivityLog struct {
	ID           int64           `gorm:"primaryKey;column:id" json:"id"`
	Action       string          `gorm:"not null" json:"action"`
	BookingID    int64           `gorm:"not null;column:booking_id" json:"booking_id"`
	OrderNo      int64           `gorm:"not null;column:order_no" json:"order_no"`
	CustomerName string          `gorm:"column:customer_name" json:"customer_name"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	CreatedAt    time.Time       `gorm:"not null;index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

const ActionBookingCreated = "order_booking_created"

// AppConfig is the singleton session row of one tenant store. SessionID
// is nulled on logout; profile fields come from the server at login.
type AppConfig struct {
	ID             int               `gorm:"primaryKey" json:"id"`
	SessionID      *string           `gorm:"column:session_id" json:"session_id,omitempty"`
	EntityID       string            `gorm:"column:entity_id" json:"entity_id"`
	CashierName    string            `gorm:"column:cashier_name" json:"cashier_name"`
	CompanyName    string            `gorm:"column:company_name" json:"company_name"`
	CompanyAddress string            `gorm:"column:company_address" json:"company_address"`
	CompanyLogoURL string            `gorm:"column:company_logo_url" json:"company_logo_url"`
	ConnectionURL  string            `gorm:"column:connection_url" json:"connection_url"`
	Profile        datatypes.JSONMap `gorm:"not null;default:'{}'" json:"profile,omitempty"`
	UpdatedAt      time.Time         `gorm:"not null" json:"updated_at"`
}

func (AppConfig) TableName() string { return "app_config" }

// AppConfigRowID is the fixed primary key of the singleton row.
const AppConfigRowID = 1
