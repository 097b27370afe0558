package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a sellable product cached from the server catalog. The local
// copy is read-only; RefreshCatalog replaces it wholesale.
type Item struct {
	ItemID    int64           `gorm:"primaryKey;column:item_id" json:"item_id"`
	Code      string          `gorm:"not null;column:code" json:"code"`
	Name      string          `gorm:"not null;index" json:"name"`
	UOM       string          `gorm:"column:uom" json:"uom"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null;column:unit_price" json:"unit_price"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (Item) TableName() string { return "items" }

// CashBankAccount is a payment destination a receipt can reference.
type CashBankAccount struct {
	ID        int64     `gorm:"primaryKey;column:id" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	Kind      string    `gorm:"not null;column:kind" json:"kind"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (CashBankAccount) TableName() string { return "cash_bank_accounts" }

type ListItemsRequest struct {
	// Search matches a substring of the item name or code.
	Search string
}

// Service serves the local reference cache and refreshes it from the
// server while a session is confirmed.
type Service interface {
	ListItems(ctx context.Context, req ListItemsRequest) ([]Item, error)
	ListCashBankAccounts(ctx context.Context) ([]CashBankAccount, error)
	RefreshCatalog(ctx context.Context) error
}
