package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/bizease/internal/adapter/storage"
	"github.com/rl1809/bizease/internal/core/domain"
)

func TestCreateOrder_Success(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryAdapter()
	helmet := seedInventory(t, store, "Helmet", 6000, 45)
	calculator := seedInventory(t, store, "Calculator", 10000, 100)
	svc := newTestOrderService(t, store, nil)

	order, err := svc.CreateOrder(ctx, owner, orderInput("bob", line("Helmet", 40, 6000), line(" calculator ", 10, 10000)))
	require.NoError(t, err)

	requireDecimal(t, 340000, order.TotalPrice)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Nil(t, order.DeliveryDate)
	require.Len(t, order.OrderedProducts, 2)
	assert.Equal(t, "Helmet", order.OrderedProducts[0].Name)
	assert.Equal(t, "Calculator", order.OrderedProducts[1].Name, "stored under the inventory's canonical name")
	assert.Equal(t, calculator.ID, order.OrderedProducts[1].InventoryItemID)

	assert.Equal(t, 5, stockOf(t, store, helmet))
	assert.Equal(t, 90, stockOf(t, store, calculator))

	stored, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	requireDecimal(t, 340000, stored.TotalPrice)
	assert.Len(t, stored.OrderedProducts, 2)
}

func TestCreateOrder_DeliveredStampsDeliveryDate(t *testing.T) {
	store := storage.NewMemoryAdapter()
	seedInventory(t, store, "Calculator", 10000, 100)
	svc := newTestOrderService(t, store, nil)

	in := orderInput("bmo", line("Calculator", 1, 10000))
	in.Status = domain.OrderStatusDelivered
	order, err := svc.CreateOrder(context.Background(), owner, in)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
	require.NotNil(t, order.DeliveryDate)
	assert.Equal(t, domain.Date(fixedNow), *order.DeliveryDate)
}

func TestCreateOrder_ProductRejections(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItemInput
		want  domain.ProductErrors
	}{
		{
			name:  "duplicate names",
			items: []LineItemInput{line("Safety Boots", 1, 65000), line("safety  boots", 2, 65000)},
			want:  domain.ProductErrors{"Safety Boots": {domain.MsgDuplicateProduct}},
		},
		{
			name:  "missing from inventory",
			items: []LineItemInput{line("Helmet", 1, 6000), line("Wisdom", 1, 100)},
			want:  domain.ProductErrors{"Wisdom": {"'Wisdom' doesn't exist in the Inventory."}},
		},
		{
			name:  "short stock and wrong price",
			items: []LineItemInput{line("Helmet", 50, 6300)},
			want: domain.ProductErrors{"Helmet": {
				"Not enough products in stock to satisfy order for 'Helmet'",
				"Price isn't the same as that of inventory item for 'Helmet'",
			}},
		},
		{
			name:  "keyed by the caller's spelling",
			items: []LineItemInput{line("helmet", 1, 1)},
			want:  domain.ProductErrors{"helmet": {domain.MsgPriceMismatch("helmet")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryAdapter()
			helmet := seedInventory(t, store, "Helmet", 6000, 45)
			boots := seedInventory(t, store, "Safety Boots", 65000, 20)
			svc := newTestOrderService(t, store, nil)

			order, err := svc.CreateOrder(ctx, owner, orderInput("bob", tt.items...))
			assert.Nil(t, order)

			var got domain.ProductErrors
			require.ErrorAs(t, err, &got)
			assert.Equal(t, tt.want, got)

			assert.Equal(t, 45, stockOf(t, store, helmet))
			assert.Equal(t, 20, stockOf(t, store, boots))
			page, err := svc.ListOrders(ctx, owner, domain.OrderQuery{})
			require.NoError(t, err)
			assert.Zero(t, page.Total)
		})
	}
}

func TestCreateOrder_StructuralValidation(t *testing.T) {
	svc := newTestOrderService(t, storage.NewMemoryAdapter(), nil)

	_, err := svc.CreateOrder(context.Background(), owner, CreateOrderInput{
		OrderedProducts: []LineItemInput{line("Helmet", 1, 6000), {Name: " ", Quantity: 0}},
	})

	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []string{domain.MsgRequired}, v.Fields["client_name"])
	assert.Equal(t, []string{domain.MsgRequired}, v.Fields["order_date"])
	require.Len(t, v.Lists["ordered_products"], 2)
	assert.Empty(t, v.Lists["ordered_products"][0])
	assert.Equal(t, domain.FieldErrors{
		"name":     {domain.MsgRequired},
		"quantity": {domain.MsgMinOne},
	}, v.Lists["ordered_products"][1])

	_, err = svc.CreateOrder(context.Background(), owner, orderInput("bob"))
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []string{domain.MsgEmptyList}, v.Fields["ordered_products"])

	in := orderInput("bob", line("Helmet", 1, 6000))
	in.Status = "Shipped"
	_, err = svc.CreateOrder(context.Background(), owner, in)
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []string{`"Shipped" is not a valid choice.`}, v.Fields["status"])
}

func TestCreateOrder_FailedPersistRollsBackStock(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	helmet := seedInventory(t, mem, "Helmet", 6000, 45)
	boom := errors.New("disk full")
	svc := newTestOrderService(t, failingStore{MemoryAdapter: mem, err: boom}, nil)

	_, err := svc.CreateOrder(context.Background(), owner, orderInput("bob", line("Helmet", 40, 6000)))
	require.ErrorIs(t, err, boom)
	assert.False(t, IsDomainError(err))
	assert.Equal(t, 45, stockOf(t, mem, helmet))
}

func TestCreateOrder_Idempotency(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryAdapter()
	helmet := seedInventory(t, store, "Helmet", 6000, 45)
	cache := newMockCacheRepo()
	svc := newTestOrderService(t, store, cache)

	in := orderInput("bob", line("Helmet", 1, 6000))
	in.IdempotencyKey = "req-1"
	_, err := svc.CreateOrder(ctx, owner, in)
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, owner, in)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
	assert.Equal(t, 44, stockOf(t, store, helmet))

	// A rejected request gives its key back so the client can retry.
	bad := orderInput("bob", line("Wisdom", 1, 100))
	bad.IdempotencyKey = "req-2"
	_, err = svc.CreateOrder(ctx, owner, bad)
	var pe domain.ProductErrors
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"order:owner-1:req-2"}, cache.cleared)

	seedInventory(t, store, "Wisdom", 100, 3)
	_, err = svc.CreateOrder(ctx, owner, bad)
	require.NoError(t, err)
}

func TestCreateOrder_ConcurrentNoOverselling(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryAdapter()
	helmet := seedInventory(t, store, "Helmet", 6000, 10)
	svc := newTestOrderService(t, store, nil)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(ctx, owner, orderInput("bob", line("Helmet", 1, 6000)))
			if err == nil {
				successCount.Add(1)
				return
			}
			var pe domain.ProductErrors
			if !errors.As(err, &pe) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), successCount.Load())
	assert.Equal(t, 0, stockOf(t, store, helmet))
}

// cupOrder creates the line-item fixture: 5 cups at 800 from a stock of 100.
func cupOrder(t *testing.T) (*OrderService, *storage.MemoryAdapter, domain.InventoryItem, *domain.Order) {
	t.Helper()
	store := storage.NewMemoryAdapter()
	cup := seedInventory(t, store, "Cup", 800, 100)
	seedInventory(t, store, "Plate", 1500, 10)
	svc := newTestOrderService(t, store, nil)

	order, err := svc.CreateOrder(context.Background(), owner, orderInput("bob", line("Cup", 5, 800)))
	require.NoError(t, err)
	requireDecimal(t, 4000, order.TotalPrice)
	return svc, store, cup, order
}

func TestUpdateLineItem_Quantity(t *testing.T) {
	ctx := context.Background()
	svc, store, cup, order := cupOrder(t)
	itemID := order.OrderedProducts[0].ID

	updated, err := svc.UpdateLineItem(ctx, owner, order.ID, itemID, LineItemPatch{Quantity: intp(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
	requireDecimal(t, 1600, updated.LineTotal())
	assert.Equal(t, 98, stockOf(t, store, cup))

	got, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	requireDecimal(t, 1600, got.TotalPrice)

	_, err = svc.UpdateLineItem(ctx, owner, order.ID, itemID, LineItemPatch{Quantity: intp(10)})
	require.NoError(t, err)
	assert.Equal(t, 90, stockOf(t, store, cup))

	_, err = svc.UpdateLineItem(ctx, owner, order.ID, itemID, LineItemPatch{Quantity: intp(101)})
	var pe domain.ProductErrors
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.ProductErrors{"Cup": {domain.MsgNotEnoughStock("Cup")}}, pe)
	assert.Equal(t, 90, stockOf(t, store, cup))
}

func TestUpdateLineItem_PriceIsImmutable(t *testing.T) {
	ctx := context.Background()
	svc, store, cup, order := cupOrder(t)
	price := decimal.NewFromInt(2000)

	_, err := svc.UpdateLineItem(ctx, owner, order.ID, order.OrderedProducts[0].ID, LineItemPatch{Price: &price})
	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []string{domain.MsgPriceImmutable}, v.Fields["price"])

	got, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	requireDecimal(t, 4000, got.TotalPrice)
	requireDecimal(t, 800, got.OrderedProducts[0].Price)
	assert.Equal(t, 95, stockOf(t, store, cup))
}

func TestUpdateLineItem_PriceWithQuantityChangesNothing(t *testing.T) {
	ctx := context.Background()
	svc, store, cup, order := cupOrder(t)
	price := decimal.NewFromInt(2000)

	_, err := svc.UpdateLineItem(ctx, owner, order.ID, order.OrderedProducts[0].ID, LineItemPatch{Quantity: intp(2), Price: &price})
	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []string{domain.MsgPriceImmutable}, v.Fields["price"])

	got, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.OrderedProducts[0].Quantity)
	requireDecimal(t, 800, got.OrderedProducts[0].Price)
	requireDecimal(t, 4000, got.TotalPrice)
	assert.Equal(t, 95, stockOf(t, store, cup))
}

func TestUpdateLineItem_NotFound(t *testing.T) {
	svc, _, _, order := cupOrder(t)

	_, err := svc.UpdateLineItem(context.Background(), owner, order.ID, "missing", LineItemPatch{Quantity: intp(1)})
	assert.ErrorIs(t, err, domain.ErrOrderedProductNotFound)

	_, err = svc.UpdateLineItem(context.Background(), "someone-else", order.ID, order.OrderedProducts[0].ID, LineItemPatch{Quantity: intp(1)})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestAddLineItem(t *testing.T) {
	ctx := context.Background()
	svc, store, _, order := cupOrder(t)

	added, err := svc.AddLineItem(ctx, owner, order.ID, line("plate", 2, 1500))
	require.NoError(t, err)
	assert.Equal(t, "Plate", added.Name)

	got, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	requireDecimal(t, 7000, got.TotalPrice)
	assert.Len(t, got.OrderedProducts, 2)

	plate, err := NewLedger(store).FindByName(ctx, owner, "Plate")
	require.NoError(t, err)
	assert.Equal(t, 8, plate.StockLevel)

	_, err = svc.AddLineItem(ctx, owner, order.ID, line("cup", 1, 800))
	var pe domain.ProductErrors
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.ProductErrors{"cup": {domain.MsgDuplicateProduct}}, pe)

	_, err = svc.AddLineItem(ctx, owner, order.ID, LineItemInput{Name: "Plate"})
	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []string{domain.MsgMinOne}, v.Fields["quantity"])
}

func TestAddLineItem_OnlyPending(t *testing.T) {
	ctx := context.Background()
	svc, _, _, order := cupOrder(t)
	delivered := domain.OrderStatusDelivered
	_, err := svc.UpdateOrder(ctx, owner, order.ID, OrderPatch{Status: &delivered})
	require.NoError(t, err)

	_, err = svc.AddLineItem(ctx, owner, order.ID, line("Plate", 1, 1500))
	assert.ErrorIs(t, err, domain.ErrAddNonPending)
}

func TestDeleteLineItem(t *testing.T) {
	ctx := context.Background()
	svc, store, cup, order := cupOrder(t)
	itemID := order.OrderedProducts[0].ID

	err := svc.DeleteLineItem(ctx, owner, order.ID, itemID)
	require.ErrorIs(t, err, domain.ErrOnlyOrderedProduct)
	assert.Equal(t, "The only ordered product of an order can't be deleted. An Order must have at least one ordered product", err.Error())

	_, err = svc.AddLineItem(ctx, owner, order.ID, line("Plate", 2, 1500))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLineItem(ctx, owner, order.ID, itemID))
	assert.Equal(t, 100, stockOf(t, store, cup))

	got, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	requireDecimal(t, 3000, got.TotalPrice)
	require.Len(t, got.OrderedProducts, 1)
	assert.Equal(t, "Plate", got.OrderedProducts[0].Name)

	_, err = svc.GetLineItem(ctx, owner, order.ID, itemID)
	assert.ErrorIs(t, err, domain.ErrOrderedProductNotFound)
}

func TestDeleteLineItem_OnlyPending(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryAdapter()
	seedInventory(t, store, "Cup", 800, 100)
	seedInventory(t, store, "Plate", 1500, 10)
	svc := newTestOrderService(t, store, nil)

	in := orderInput("bmo", line("Cup", 1, 800), line("Plate", 1, 1500))
	in.Status = domain.OrderStatusDelivered
	order, err := svc.CreateOrder(ctx, owner, in)
	require.NoError(t, err)

	err = svc.DeleteLineItem(ctx, owner, order.ID, order.OrderedProducts[0].ID)
	require.ErrorIs(t, err, domain.ErrDeleteNonPending)
	assert.Equal(t, "Only the Ordered products of Pending Orders can be deleted", err.Error())

	_, err = svc.UpdateLineItem(ctx, owner, order.ID, order.OrderedProducts[0].ID, LineItemPatch{Quantity: intp(2)})
	assert.ErrorIs(t, err, domain.ErrUpdateNonPending)
}

func TestDeleteLineItem_LastItemOfDeliveredOrder(t *testing.T) {
	ctx := context.Background()
	svc, store, cup, order := cupOrder(t)
	delivered := domain.OrderStatusDelivered
	_, err := svc.UpdateOrder(ctx, owner, order.ID, OrderPatch{Status: &delivered})
	require.NoError(t, err)

	err = svc.DeleteLineItem(ctx, owner, order.ID, order.OrderedProducts[0].ID)
	require.ErrorIs(t, err, domain.ErrDeleteNonPending)
	assert.NotErrorIs(t, err, domain.ErrOnlyOrderedProduct)

	got, err := svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.OrderedProducts, 1)
	assert.Equal(t, 95, stockOf(t, store, cup))
}

func TestDeleteOrder_RestoresStock(t *testing.T) {
	ctx := context.Background()
	svc, store, cup, order := cupOrder(t)
	_, err := svc.AddLineItem(ctx, owner, order.ID, line("Plate", 4, 1500))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteOrder(ctx, owner, order.ID))
	assert.Equal(t, 100, stockOf(t, store, cup))
	plate, err := NewLedger(store).FindByName(ctx, owner, "Plate")
	require.NoError(t, err)
	assert.Equal(t, 10, plate.StockLevel)

	_, err = svc.GetOrder(ctx, owner, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.ErrorIs(t, svc.DeleteOrder(ctx, owner, order.ID), domain.ErrOrderNotFound)
}

func TestUpdateOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, _, order := cupOrder(t)

	name := "  Marceline "
	delivered := domain.OrderStatusDelivered
	got, err := svc.UpdateOrder(ctx, owner, order.ID, OrderPatch{ClientName: &name, Status: &delivered})
	require.NoError(t, err)
	assert.Equal(t, "Marceline", got.ClientName)
	assert.Equal(t, domain.OrderStatusDelivered, got.Status)
	require.NotNil(t, got.DeliveryDate)
	requireDecimal(t, 4000, got.TotalPrice)

	blank := ""
	_, err = svc.UpdateOrder(ctx, owner, order.ID, OrderPatch{ClientName: &blank})
	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)

	bogus := domain.OrderStatus("Lost")
	_, err = svc.UpdateOrder(ctx, owner, order.ID, OrderPatch{Status: &bogus})
	require.ErrorAs(t, err, &v)
	assert.Equal(t, []string{`"Lost" is not a valid choice.`}, v.Fields["status"])

	_, err = svc.UpdateOrder(ctx, owner, "missing", OrderPatch{ClientName: &name})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryAdapter()
	seedInventory(t, store, "Bag", 16000, 75)
	seedInventory(t, store, "Tape", 6000, 85)
	svc := newTestOrderService(t, store, nil, WithPageSize(2))

	dates := []string{"2025-07-15", "2025-07-20", "2025-07-17"}
	for i, client := range []string{"prismo", "bob", "gumball"} {
		d, err := domain.ParseDate(dates[i])
		require.NoError(t, err)
		in := CreateOrderInput{ClientName: client, OrderDate: d, OrderedProducts: []LineItemInput{line("Tape", i+1, 6000)}}
		if client == "prismo" {
			in.OrderedProducts = []LineItemInput{line("Bag", 1, 16000)}
		}
		_, err = svc.CreateOrder(ctx, owner, in)
		require.NoError(t, err)
	}

	page, err := svc.ListOrders(ctx, owner, domain.OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.PageCount)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "bob", page.Orders[0].ClientName)
	assert.Equal(t, "gumball", page.Orders[1].ClientName)
	require.NotNil(t, page.NextPage)
	assert.Nil(t, page.PrevPage)

	page, err = svc.ListOrders(ctx, owner, domain.OrderQuery{Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "prismo", page.Orders[0].ClientName)

	page, err = svc.ListOrders(ctx, owner, domain.OrderQuery{Search: "BAG"})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "prismo", page.Orders[0].ClientName)

	_, err = svc.ListOrders(ctx, owner, domain.OrderQuery{Page: 3})
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.MsgInvalidPage, nf.Message)

	page, err = svc.ListOrders(ctx, "nobody", domain.OrderQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Equal(t, 1, page.PageCount)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryAdapter()
	seedInventory(t, store, "Calculator", 10000, 100)
	seedInventory(t, store, "Helmet", 6000, 45)
	svc := newTestOrderService(t, store, nil)

	_, err := svc.CreateOrder(ctx, owner, orderInput("bob", line("Calculator", 1, 10000), line("Helmet", 5, 6000)))
	require.NoError(t, err)
	in := orderInput("bmo", line("Calculator", 1, 10000))
	in.Status = domain.OrderStatusDelivered
	_, err = svc.CreateOrder(ctx, owner, in)
	require.NoError(t, err)

	stats, err := NewStatsService(store).GetStats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 1, stats.PendingOrders)
	requireDecimal(t, 50000, stats.TotalRevenue)

	empty, err := NewStatsService(store).GetStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalOrders)
	assert.True(t, empty.TotalRevenue.IsZero())
}
