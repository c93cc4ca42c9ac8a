package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout accepts one- or two-digit months and days on input; Format always pads.
const DateLayout = "2006-1-2"

const dateOutputLayout = "2006-01-02"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusDelivered OrderStatus = "Delivered"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusDelivered:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("%q is not a valid choice.", s)
}

type Order struct {
	ID              string
	OwnerID         string
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	OrderDate       time.Time
	DeliveryDate    *time.Time
	Status          OrderStatus
	TotalPrice      decimal.Decimal
	OrderedProducts []OrderedProduct
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderedProduct struct {
	ID              string
	OrderID         string
	InventoryItemID string
	Name            string
	Quantity        int
	Price           decimal.Decimal
	CreatedAt       time.Time
}

func (p OrderedProduct) LineTotal() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// RecomputeTotal sets TotalPrice to the sum of the line totals.
func (o *Order) RecomputeTotal() {
	total := decimal.Zero
	for _, p := range o.OrderedProducts {
		total = total.Add(p.LineTotal())
	}
	o.TotalPrice = total
}

func (o *Order) CanMutateLineItems() bool {
	return o.Status == OrderStatusPending
}

// SetStatus applies a status change. Entering Delivered stamps the delivery date.
func (o *Order) SetStatus(status OrderStatus, now time.Time) {
	if status == OrderStatusDelivered && o.Status != OrderStatusDelivered {
		d := Date(now)
		o.DeliveryDate = &d
	}
	o.Status = status
}

func (o *Order) LineItem(id string) (*OrderedProduct, int) {
	for i := range o.OrderedProducts {
		if o.OrderedProducts[i].ID == id {
			return &o.OrderedProducts[i], i
		}
	}
	return nil, -1
}

func (o *Order) RemoveLineItem(idx int) {
	o.OrderedProducts = append(o.OrderedProducts[:idx:idx], o.OrderedProducts[idx+1:]...)
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Date(t), nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateOutputLayout)
}
