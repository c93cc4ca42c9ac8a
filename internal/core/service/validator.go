package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rl1809/bizease/internal/core/domain"
)

type LineItemInput struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// ResolvedLineItem is a line item matched to the inventory row it draws stock from.
type ResolvedLineItem struct {
	Item     domain.InventoryItem
	Quantity int
	Price    decimal.Decimal
}

func (r ResolvedLineItem) OrderedProduct(id, orderID string) domain.OrderedProduct {
	return domain.OrderedProduct{
		ID:              id,
		OrderID:         orderID,
		InventoryItemID: r.Item.ID,
		Name:            r.Item.ProductName,
		Quantity:        r.Quantity,
		Price:           r.Price,
	}
}

// Validator cross-checks proposed line items against the ledger without touching stock.
type Validator struct {
	ledger *Ledger
}

func NewValidator(ledger *Ledger) *Validator {
	return &Validator{ledger: ledger}
}

// Validate resolves every item or returns domain.ProductErrors keyed by the caller's product
// name. Names already on the order count as duplicates.
func (v *Validator) Validate(ctx context.Context, ownerID string, items []LineItemInput, existing []domain.OrderedProduct) ([]ResolvedLineItem, error) {
	counts := make(map[string]int, len(items)+len(existing))
	for _, p := range existing {
		counts[domain.NameKey(p.Name)]++
	}
	for _, in := range items {
		counts[domain.NameKey(in.Name)]++
	}

	problems := domain.ProductErrors{}
	resolved := make([]ResolvedLineItem, 0, len(items))
	seen := make(map[string]bool, len(items))

	for _, in := range items {
		key := domain.NameKey(in.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		name := domain.DisplayName(in.Name)

		if counts[key] > 1 {
			problems.Add(name, domain.MsgDuplicateProduct)
			continue
		}

		item, err := v.ledger.FindByName(ctx, ownerID, in.Name)
		if errors.Is(err, domain.ErrInventoryItemNotFound) {
			problems.Add(name, domain.MsgMissingProduct(name))
			continue
		}
		if err != nil {
			return nil, err
		}

		if in.Quantity > item.StockLevel {
			problems.Add(name, domain.MsgNotEnoughStock(name))
		}
		if !in.Price.Equal(item.Price) {
			problems.Add(name, domain.MsgPriceMismatch(name))
		}
		if _, bad := problems[name]; bad {
			continue
		}

		resolved = append(resolved, ResolvedLineItem{Item: *item, Quantity: in.Quantity, Price: item.Price})
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return resolved, nil
}
