package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/bizease/internal/adapter/storage"
	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/port"
)

const owner = "owner-1"

var fixedNow = time.Date(2025, 7, 20, 9, 30, 0, 0, time.UTC)

type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	cleared        []string
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ClearIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	m.cleared = append(m.cleared, key)
	return nil
}

// failingTx fails CreateOrder after the unit of work has already reserved stock.
type failingTx struct {
	port.Tx
	err error
}

func (f failingTx) CreateOrder(context.Context, domain.Order) error { return f.err }

type failingStore struct {
	*storage.MemoryAdapter
	err error
}

func (f failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	return f.MemoryAdapter.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		return fn(ctx, failingTx{Tx: tx, err: f.err})
	})
}

func newTestOrderService(t *testing.T, db port.DatabaseRepository, cache port.CacheRepository, opts ...Option) *OrderService {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewOrderService(db, cache, zaptest.NewLogger(t), opts...)
}

func seedInventory(t *testing.T, store port.InventoryRepository, name string, price int64, stock int) domain.InventoryItem {
	t.Helper()
	item := domain.InventoryItem{
		ID:          newID(),
		OwnerID:     owner,
		ProductName: name,
		Price:       decimal.NewFromInt(price),
		StockLevel:  stock,
		DateAdded:   domain.Date(fixedNow),
		UpdatedAt:   fixedNow,
	}
	require.NoError(t, store.CreateInventoryItem(context.Background(), item))
	return item
}

func stockOf(t *testing.T, store port.InventoryRepository, item domain.InventoryItem) int {
	t.Helper()
	got, err := store.GetInventoryItem(context.Background(), item.OwnerID, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	return got.StockLevel
}

func line(name string, quantity int, price int64) LineItemInput {
	return LineItemInput{Name: name, Quantity: quantity, Price: decimal.NewFromInt(price)}
}

func orderInput(client string, items ...LineItemInput) CreateOrderInput {
	return CreateOrderInput{ClientName: client, OrderDate: fixedNow, OrderedProducts: items}
}

func requireDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got)
}

func intp(n int) *int { return &n }
