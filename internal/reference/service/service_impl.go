package service

import (
	"context"
	"fmt"

	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/reference/domain"
	"github.com/fieldkit/salesync/internal/session"
	"github.com/fieldkit/salesync/internal/tenant"
	"github.com/fieldkit/salesync/internal/transport"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const catalogQuery = `query Catalog {
  items { item_id code name uom unit_price }
  cash_bank_accounts { id name kind }
}`

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Tenants  *tenant.Manager
	Sessions *session.Manager
	Client   *transport.Client
}

type service struct {
	log      *zap.Logger
	clock    clock.Clock
	tenants  *tenant.Manager
	sessions *session.Manager
	client   *transport.Client
}

func New(p Params) domain.Service {
	return &service{
		log:      p.Log.Named("reference.service"),
		clock:    p.Clock,
		tenants:  p.Tenants,
		sessions: p.Sessions,
		client:   p.Client,
	}
}

func (s *service) ListItems(ctx context.Context, req domain.ListItemsRequest) ([]domain.Item, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return nil, err
	}

	q := handle.WithContext(ctx).Order("name ASC")
	if req.Search != "" {
		pattern := "%" + req.Search + "%"
		q = q.Where("name LIKE ? OR code LIKE ?", pattern, pattern)
	}

	var items []domain.Item
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *service) ListCashBankAccounts(ctx context.Context) ([]domain.CashBankAccount, error) {
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var accounts []domain.CashBankAccount
	if err := handle.WithContext(ctx).Order("name ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

type catalogPayload struct {
	Items []struct {
		ItemID    int64  `json:"item_id"`
		Code      string `json:"code"`
		Name      string `json:"name"`
		UOM       string `json:"uom"`
		UnitPrice string `json:"unit_price"`
	} `json:"items"`
	CashBankAccounts []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind"`
	} `json:"cash_bank_accounts"`
}

// RefreshCatalog pulls the server catalog and replaces the local tables
// in one transaction, so readers never see a half-applied refresh.
func (s *service) RefreshCatalog(ctx context.Context) error {
	sessionID, _, serverOrigin, err := s.sessions.ActiveSession()
	if err != nil {
		return err
	}
	handle, err := s.tenants.Handle(ctx)
	if err != nil {
		return err
	}

	var payload catalogPayload
	if err := s.client.QueryReference(ctx, serverOrigin, sessionID, catalogQuery, nil, &payload); err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	now := s.clock.Now()
	items := make([]domain.Item, 0, len(payload.Items))
	for _, raw := range payload.Items {
		item, err := itemFromPayload(raw.ItemID, raw.Code, raw.Name, raw.UOM, raw.UnitPrice)
		if err != nil {
			return err
		}
		item.UpdatedAt = now
		items = append(items, item)
	}
	accounts := make([]domain.CashBankAccount, 0, len(payload.CashBankAccounts))
	for _, raw := range payload.CashBankAccounts {
		accounts = append(accounts, domain.CashBankAccount{
			ID:        raw.ID,
			Name:      raw.Name,
			Kind:      raw.Kind,
			UpdatedAt: now,
		})
	}

	err = handle.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Item{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&domain.CashBankAccount{}).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		if len(accounts) > 0 {
			if err := tx.Create(&accounts).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}

	s.log.Info("catalog refreshed",
		zap.Int("items", len(items)),
		zap.Int("cash_bank_accounts", len(accounts)),
	)
	return nil
}

func itemFromPayload(itemID int64, code, name, uom, unitPrice string) (domain.Item, error) {
	price, err := decimal.NewFromString(unitPrice)
	if err != nil {
		return domain.Item{}, fmt.Errorf("item %d: bad unit price %q: %w", itemID, unitPrice, err)
	}
	return domain.Item{
		ItemID:    itemID,
		Code:      code,
		Name:      name,
		UOM:       uom,
		UnitPrice: price,
	}, nil
}
