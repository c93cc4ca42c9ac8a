package service

import (
	"context"
	"fmt"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/port"
)

// Ledger is the inventory view of one unit of work.
type Ledger struct {
	repo port.InventoryRepository
}

func NewLedger(repo port.InventoryRepository) *Ledger {
	return &Ledger{repo: repo}
}

// FindByName looks an item up by name, ignoring case and surrounding whitespace.
func (l *Ledger) FindByName(ctx context.Context, ownerID, name string) (*domain.InventoryItem, error) {
	item, err := l.repo.FindInventoryByName(ctx, ownerID, domain.NameKey(name))
	if err != nil {
		return nil, fmt.Errorf("find inventory %q: %w", name, err)
	}
	if item == nil {
		return nil, domain.ErrInventoryItemNotFound
	}
	return item, nil
}

// Reserve takes quantity out of stock. It fails with domain.ErrInsufficientStock and leaves
// stock untouched when stock_level < quantity.
func (l *Ledger) Reserve(ctx context.Context, item *domain.InventoryItem, quantity int) error {
	ok, err := l.repo.DecrementStock(ctx, item.ID, quantity)
	if err != nil {
		return fmt.Errorf("stock decrement failed: %w", err)
	}
	if !ok {
		return domain.ErrInsufficientStock
	}
	item.StockLevel -= quantity
	return nil
}

// Release puts quantity back into stock.
func (l *Ledger) Release(ctx context.Context, itemID string, quantity int) error {
	if err := l.repo.IncrementStock(ctx, itemID, quantity); err != nil {
		return fmt.Errorf("stock increment failed: %w", err)
	}
	return nil
}

// AddItem registers a new product; the name must be unique for the owner after normalization.
func (l *Ledger) AddItem(ctx context.Context, item domain.InventoryItem) error {
	existing, err := l.repo.FindInventoryByName(ctx, item.OwnerID, item.NameKey())
	if err != nil {
		return fmt.Errorf("find inventory %q: %w", item.ProductName, err)
	}
	if existing != nil {
		return domain.ErrDuplicateInventoryItem
	}
	return l.repo.CreateInventoryItem(ctx, item)
}
