package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InventoryItem struct {
	ID          string
	OwnerID     string
	ProductName string
	Price       decimal.Decimal
	StockLevel  int
	DateAdded   time.Time
	Version     int // bumped on every stock adjustment
	UpdatedAt   time.Time
}

// NameKey is the per-owner uniqueness key of the item.
func (i InventoryItem) NameKey() string {
	return NameKey(i.ProductName)
}

// DisplayName trims a product name and collapses inner whitespace, keeping its case.
func DisplayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NameKey normalizes a product name for comparison: trimmed, whitespace-collapsed, case-folded.
func NameKey(name string) string {
	return strings.ToLower(DisplayName(name))
}
