package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/port"
)

type CreateInventoryItemInput struct {
	ProductName string
	Price       decimal.Decimal
	StockLevel  int
	DateAdded   time.Time // defaults to today
}

func (in CreateInventoryItemInput) validate() error {
	v := domain.NewValidationError()
	if domain.DisplayName(in.ProductName) == "" {
		v.Fields.Add("product_name", domain.MsgRequired)
	}
	if in.StockLevel < 0 {
		v.Fields.Add("stock_level", domain.MsgNegativeInteger)
	}
	if in.Price.IsNegative() {
		v.Fields.Add("price", domain.MsgNegativeInteger)
	}
	return v.OrNil()
}

type InventoryService struct {
	db     port.DatabaseRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewInventoryService(db port.DatabaseRepository, logger *zap.Logger) *InventoryService {
	return &InventoryService{db: db, logger: logger, now: time.Now}
}

func (s *InventoryService) CreateItem(ctx context.Context, ownerID string, in CreateInventoryItemInput) (*domain.InventoryItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	item := domain.InventoryItem{
		ID:          newID(),
		OwnerID:     ownerID,
		ProductName: domain.DisplayName(in.ProductName),
		Price:       in.Price.Round(2),
		StockLevel:  in.StockLevel,
		DateAdded:   domain.Date(now),
		UpdatedAt:   now,
	}
	if !in.DateAdded.IsZero() {
		item.DateAdded = domain.Date(in.DateAdded)
	}

	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		return NewLedger(tx).AddItem(ctx, item)
	})
	if err != nil {
		if IsDomainError(err) {
			s.logger.Warn("create inventory item rejected", zap.String("product", item.ProductName), zap.Error(err))
		} else {
			s.logger.Error("create inventory item failed", zap.String("product", item.ProductName), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("inventory item created",
		zap.String("item_id", item.ID),
		zap.String("product", item.ProductName),
		zap.Int("stock_level", item.StockLevel))
	return &item, nil
}

func (s *InventoryService) GetItem(ctx context.Context, ownerID, itemID string) (*domain.InventoryItem, error) {
	item, err := s.db.GetInventoryItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, fmt.Errorf("get inventory item: %w", err)
	}
	if item == nil {
		return nil, domain.ErrInventoryItemNotFound
	}
	return item, nil
}

// FindByName resolves a product the same way ordered products are matched.
func (s *InventoryService) FindByName(ctx context.Context, ownerID, name string) (*domain.InventoryItem, error) {
	return NewLedger(s.db).FindByName(ctx, ownerID, name)
}

func (s *InventoryService) ListItems(ctx context.Context, ownerID string) ([]domain.InventoryItem, error) {
	items, err := s.db.ListInventory(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}
