package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/bizease/internal/adapter/storage"
	"github.com/rl1809/bizease/internal/core/domain"
)

func TestInventoryService_CreateItem(t *testing.T) {
	ctx := context.Background()
	svc := NewInventoryService(storage.NewMemoryAdapter(), zaptest.NewLogger(t))

	item, err := svc.CreateItem(ctx, owner, CreateInventoryItemInput{
		ProductName: "  Safety   Boots ",
		Price:       decimal.RequireFromString("65000.499"),
		StockLevel:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, "Safety Boots", item.ProductName)
	assert.Equal(t, "65000.50", item.Price.StringFixed(2))
	assert.False(t, item.DateAdded.IsZero())

	got, err := svc.GetItem(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	byName, err := svc.FindByName(ctx, owner, "safety boots")
	require.NoError(t, err)
	assert.Equal(t, item.ID, byName.ID)

	_, err = svc.CreateItem(ctx, owner, CreateInventoryItemInput{ProductName: "SAFETY BOOTS", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrDuplicateInventoryItem)

	items, err := svc.ListItems(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.GetItem(ctx, "owner-2", item.ID)
	assert.ErrorIs(t, err, domain.ErrInventoryItemNotFound)
}

func TestInventoryService_CreateItemValidation(t *testing.T) {
	svc := NewInventoryService(storage.NewMemoryAdapter(), zaptest.NewLogger(t))

	_, err := svc.CreateItem(context.Background(), owner, CreateInventoryItemInput{
		ProductName: "   ",
		Price:       decimal.NewFromInt(-1),
		StockLevel:  -3,
	})
	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, domain.FieldErrors{
		"product_name": {domain.MsgRequired},
		"price":        {domain.MsgNegativeInteger},
		"stock_level":  {domain.MsgNegativeInteger},
	}, v.Fields)
}
