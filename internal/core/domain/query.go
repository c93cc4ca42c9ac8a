package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type SortField string

const (
	SortByID         SortField = "id"
	SortByOrderDate  SortField = "order_date"
	SortByTotalPrice SortField = "total_price"
)

type OrderSort struct {
	Field      SortField
	Descending bool
}

// DefaultOrderSort lists the most recent order dates first.
var DefaultOrderSort = OrderSort{Field: SortByOrderDate, Descending: true}

// ParseOrderSort parses "field" or "-field". An empty string yields the default ordering.
func ParseOrderSort(s string) (OrderSort, bool) {
	if s == "" {
		return DefaultOrderSort, true
	}
	desc := strings.HasPrefix(s, "-")
	field := SortField(strings.TrimPrefix(s, "-"))
	switch field {
	case SortByID, SortByOrderDate, SortByTotalPrice:
		return OrderSort{Field: field, Descending: desc}, true
	}
	return OrderSort{}, false
}

// OrderQuery carries already-parsed list parameters.
type OrderQuery struct {
	Status   OrderStatus // empty matches every status
	Search   string
	Sort     OrderSort
	Page     int
	PageSize int
}

func (q OrderQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

type OrderPage struct {
	Orders    []Order
	Total     int
	Page      int
	PageCount int
	NextPage  *int
	PrevPage  *int
}

func NewOrderPage(orders []Order, total int, q OrderQuery) OrderPage {
	pageCount := 1
	if total > 0 {
		pageCount = (total + q.PageSize - 1) / q.PageSize
	}
	p := OrderPage{Orders: orders, Total: total, Page: q.Page, PageCount: pageCount}
	if q.Page < pageCount {
		next := q.Page + 1
		p.NextPage = &next
	}
	if q.Page > 1 {
		prev := q.Page - 1
		p.PrevPage = &prev
	}
	return p
}

type OrderStats struct {
	TotalOrders   int
	TotalRevenue  decimal.Decimal
	PendingOrders int
}
