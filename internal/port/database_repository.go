package port

import (
	"context"

	"github.com/rl1809/bizease/internal/core/domain"
)

// InventoryRepository reads and adjusts per-owner stock. Lookups return (nil, nil) when the
// row does not exist.
type InventoryRepository interface {
	// CreateInventoryItem returns domain.ErrDuplicateInventoryItem when (owner, name key) is taken
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) error

	GetInventoryItem(ctx context.Context, ownerID, itemID string) (*domain.InventoryItem, error)

	// FindInventoryByName matches on domain.NameKey
	FindInventoryByName(ctx context.Context, ownerID, nameKey string) (*domain.InventoryItem, error)

	ListInventory(ctx context.Context, ownerID string) ([]domain.InventoryItem, error)

	// DecrementStock atomically decreases stock, returns false if insufficient
	DecrementStock(ctx context.Context, itemID string, quantity int) (bool, error)

	// IncrementStock restores stock
	IncrementStock(ctx context.Context, itemID string, quantity int) error
}

type OrderRepository interface {
	// CreateOrder persists the order together with its ordered products
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder loads an owner's order with ordered products in insertion order
	GetOrder(ctx context.Context, ownerID, orderID string) (*domain.Order, error)

	ListOrders(ctx context.Context, ownerID string, q domain.OrderQuery) ([]domain.Order, int, error)

	// UpdateOrder writes header fields and total price
	UpdateOrder(ctx context.Context, order domain.Order) error

	// DeleteOrder removes the order row and its ordered products
	DeleteOrder(ctx context.Context, orderID string) error

	CreateOrderedProduct(ctx context.Context, product domain.OrderedProduct) error
	UpdateOrderedProduct(ctx context.Context, product domain.OrderedProduct) error
	DeleteOrderedProduct(ctx context.Context, productID string) error

	OrderStats(ctx context.Context, ownerID string) (domain.OrderStats, error)
}

// Tx is one unit of work.
type Tx interface {
	InventoryRepository
	OrderRepository
}

type DatabaseRepository interface {
	Tx

	// WithinTx runs fn in a serializable unit of work, committed only when fn returns nil
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
