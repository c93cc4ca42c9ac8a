package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/port"
)

// MemoryAdapter keeps everything in process. Units of work run one at a time against a
// private copy that replaces the live state only on commit.
type MemoryAdapter struct {
	mu    sync.RWMutex
	state *memoryState
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{state: newMemoryState()}
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	draft := m.state.clone()
	if err := fn(ctx, draft); err != nil {
		return err
	}
	m.state = draft
	return nil
}

func (m *MemoryAdapter) read() *memoryState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Writes outside WithinTx are single-statement units of work.
func (m *MemoryAdapter) write(ctx context.Context, fn func(tx port.Tx) error) error {
	return m.WithinTx(ctx, func(_ context.Context, tx port.Tx) error { return fn(tx) })
}

func (m *MemoryAdapter) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) error {
	return m.write(ctx, func(tx port.Tx) error { return tx.CreateInventoryItem(ctx, item) })
}

func (m *MemoryAdapter) GetInventoryItem(ctx context.Context, ownerID, itemID string) (*domain.InventoryItem, error) {
	return m.read().GetInventoryItem(ctx, ownerID, itemID)
}

func (m *MemoryAdapter) FindInventoryByName(ctx context.Context, ownerID, nameKey string) (*domain.InventoryItem, error) {
	return m.read().FindInventoryByName(ctx, ownerID, nameKey)
}

func (m *MemoryAdapter) ListInventory(ctx context.Context, ownerID string) ([]domain.InventoryItem, error) {
	return m.read().ListInventory(ctx, ownerID)
}

func (m *MemoryAdapter) DecrementStock(ctx context.Context, itemID string, quantity int) (bool, error) {
	var ok bool
	err := m.write(ctx, func(tx port.Tx) error {
		var err error
		ok, err = tx.DecrementStock(ctx, itemID, quantity)
		return err
	})
	return ok, err
}

func (m *MemoryAdapter) IncrementStock(ctx context.Context, itemID string, quantity int) error {
	return m.write(ctx, func(tx port.Tx) error { return tx.IncrementStock(ctx, itemID, quantity) })
}

func (m *MemoryAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	return m.write(ctx, func(tx port.Tx) error { return tx.CreateOrder(ctx, order) })
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, ownerID, orderID string) (*domain.Order, error) {
	return m.read().GetOrder(ctx, ownerID, orderID)
}

func (m *MemoryAdapter) ListOrders(ctx context.Context, ownerID string, q domain.OrderQuery) ([]domain.Order, int, error) {
	return m.read().ListOrders(ctx, ownerID, q)
}

func (m *MemoryAdapter) UpdateOrder(ctx context.Context, order domain.Order) error {
	return m.write(ctx, func(tx port.Tx) error { return tx.UpdateOrder(ctx, order) })
}

func (m *MemoryAdapter) DeleteOrder(ctx context.Context, orderID string) error {
	return m.write(ctx, func(tx port.Tx) error { return tx.DeleteOrder(ctx, orderID) })
}

func (m *MemoryAdapter) CreateOrderedProduct(ctx context.Context, product domain.OrderedProduct) error {
	return m.write(ctx, func(tx port.Tx) error { return tx.CreateOrderedProduct(ctx, product) })
}

func (m *MemoryAdapter) UpdateOrderedProduct(ctx context.Context, product domain.OrderedProduct) error {
	return m.write(ctx, func(tx port.Tx) error { return tx.UpdateOrderedProduct(ctx, product) })
}

func (m *MemoryAdapter) DeleteOrderedProduct(ctx context.Context, productID string) error {
	return m.write(ctx, func(tx port.Tx) error { return tx.DeleteOrderedProduct(ctx, productID) })
}

func (m *MemoryAdapter) OrderStats(ctx context.Context, ownerID string) (domain.OrderStats, error) {
	return m.read().OrderStats(ctx, ownerID)
}

// memoryState is treated as immutable once published; WithinTx mutates a clone.
type memoryState struct {
	inventory map[string]domain.InventoryItem
	names     map[string]string // owner + "\x00" + name key -> item id
	orders    map[string]domain.Order
	products  map[string]domain.OrderedProduct
}

func newMemoryState() *memoryState {
	return &memoryState{
		inventory: map[string]domain.InventoryItem{},
		names:     map[string]string{},
		orders:    map[string]domain.Order{},
		products:  map[string]domain.OrderedProduct{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		inventory: make(map[string]domain.InventoryItem, len(s.inventory)),
		names:     make(map[string]string, len(s.names)),
		orders:    make(map[string]domain.Order, len(s.orders)),
		products:  make(map[string]domain.OrderedProduct, len(s.products)),
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	for k, v := range s.names {
		c.names[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	return c
}

func nameIndexKey(ownerID, nameKey string) string {
	return ownerID + "\x00" + nameKey
}

func (s *memoryState) CreateInventoryItem(_ context.Context, item domain.InventoryItem) error {
	key := nameIndexKey(item.OwnerID, item.NameKey())
	if _, taken := s.names[key]; taken {
		return domain.ErrDuplicateInventoryItem
	}
	s.inventory[item.ID] = item
	s.names[key] = item.ID
	return nil
}

func (s *memoryState) GetInventoryItem(_ context.Context, ownerID, itemID string) (*domain.InventoryItem, error) {
	item, ok := s.inventory[itemID]
	if !ok || item.OwnerID != ownerID {
		return nil, nil
	}
	return &item, nil
}

func (s *memoryState) FindInventoryByName(_ context.Context, ownerID, nameKey string) (*domain.InventoryItem, error) {
	id, ok := s.names[nameIndexKey(ownerID, nameKey)]
	if !ok {
		return nil, nil
	}
	item := s.inventory[id]
	return &item, nil
}

func (s *memoryState) ListInventory(_ context.Context, ownerID string) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	for _, item := range s.inventory {
		if item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *memoryState) DecrementStock(_ context.Context, itemID string, quantity int) (bool, error) {
	item, ok := s.inventory[itemID]
	if !ok || item.StockLevel < quantity {
		return false, nil
	}
	item.StockLevel -= quantity
	item.Version++
	s.inventory[itemID] = item
	return true, nil
}

func (s *memoryState) IncrementStock(_ context.Context, itemID string, quantity int) error {
	item, ok := s.inventory[itemID]
	if !ok {
		return nil
	}
	item.StockLevel += quantity
	item.Version++
	s.inventory[itemID] = item
	return nil
}

func (s *memoryState) CreateOrder(_ context.Context, order domain.Order) error {
	for _, p := range order.OrderedProducts {
		s.products[p.ID] = p
	}
	order.OrderedProducts = nil
	s.orders[order.ID] = order
	return nil
}

func (s *memoryState) GetOrder(_ context.Context, ownerID, orderID string) (*domain.Order, error) {
	order, ok := s.orders[orderID]
	if !ok || order.OwnerID != ownerID {
		return nil, nil
	}
	order.OrderedProducts = s.productsOf(orderID)
	return &order, nil
}

func (s *memoryState) productsOf(orderID string) []domain.OrderedProduct {
	var products []domain.OrderedProduct
	for _, p := range s.products {
		if p.OrderID == orderID {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func (s *memoryState) ListOrders(_ context.Context, ownerID string, q domain.OrderQuery) ([]domain.Order, int, error) {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	var matched []domain.Order
	for _, order := range s.orders {
		if order.OwnerID != ownerID {
			continue
		}
		if q.Status != "" && order.Status != q.Status {
			continue
		}
		order.OrderedProducts = s.productsOf(order.ID)
		if search != "" && !orderMatches(order, search) {
			continue
		}
		matched = append(matched, order)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var c int
		switch q.Sort.Field {
		case domain.SortByOrderDate:
			c = a.OrderDate.Compare(b.OrderDate)
		case domain.SortByTotalPrice:
			c = a.TotalPrice.Cmp(b.TotalPrice)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if q.Sort.Descending {
			return c > 0
		}
		return c < 0
	})

	total := len(matched)
	start := min(q.Offset(), total)
	end := min(start+q.PageSize, total)
	return matched[start:end], total, nil
}

func orderMatches(order domain.Order, search string) bool {
	if strings.Contains(strings.ToLower(order.ClientName), search) {
		return true
	}
	for _, p := range order.OrderedProducts {
		if strings.Contains(strings.ToLower(p.Name), search) {
			return true
		}
	}
	return false
}

func (s *memoryState) UpdateOrder(_ context.Context, order domain.Order) error {
	if _, ok := s.orders[order.ID]; !ok {
		return nil
	}
	order.OrderedProducts = nil
	s.orders[order.ID] = order
	return nil
}

func (s *memoryState) DeleteOrder(_ context.Context, orderID string) error {
	for id, p := range s.products {
		if p.OrderID == orderID {
			delete(s.products, id)
		}
	}
	delete(s.orders, orderID)
	return nil
}

func (s *memoryState) CreateOrderedProduct(_ context.Context, product domain.OrderedProduct) error {
	s.products[product.ID] = product
	return nil
}

func (s *memoryState) UpdateOrderedProduct(_ context.Context, product domain.OrderedProduct) error {
	if _, ok := s.products[product.ID]; ok {
		s.products[product.ID] = product
	}
	return nil
}

func (s *memoryState) DeleteOrderedProduct(_ context.Context, productID string) error {
	delete(s.products, productID)
	return nil
}

func (s *memoryState) OrderStats(_ context.Context, ownerID string) (domain.OrderStats, error) {
	stats := domain.OrderStats{TotalRevenue: decimal.Zero}
	for _, order := range s.orders {
		if order.OwnerID != ownerID {
			continue
		}
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalPrice)
		if order.Status == domain.OrderStatusPending {
			stats.PendingOrders++
		}
	}
	return stats, nil
}
