package handler

import (
	"time"

	"github.com/rl1809/bizease/internal/core/domain"
)

type orderedProductDTO struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type orderDTO struct {
	ID              string              `json:"id"`
	ClientName      string              `json:"client_name"`
	ClientEmail     string              `json:"client_email"`
	ClientPhone     string              `json:"client_phone"`
	OrderDate       string              `json:"order_date"`
	DeliveryDate    *string             `json:"delivery_date"`
	Status          string              `json:"status"`
	TotalPrice      string              `json:"total_price"`
	OrderedProducts []orderedProductDTO `json:"ordered_products"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type orderPageDTO struct {
	Orders    []orderDTO `json:"orders"`
	Length    int        `json:"length"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PageCount int        `json:"page_count"`
	NextPage  *int       `json:"next_page"`
	PrevPage  *int       `json:"prev_page"`
}

type inventoryItemDTO struct {
	ID          string `json:"id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	StockLevel  int    `json:"stock_level"`
	DateAdded   string `json:"date_added"`
}

type statsDTO struct {
	TotalOrders   int    `json:"total_orders"`
	TotalRevenue  string `json:"total_revenue"`
	PendingOrders int    `json:"pending_orders"`
}

func toOrderedProductDTO(p domain.OrderedProduct) orderedProductDTO {
	return orderedProductDTO{
		ID:       p.ID,
		OrderID:  p.OrderID,
		Name:     p.Name,
		Quantity: p.Quantity,
		Price:    p.Price.StringFixed(2),
	}
}

func toOrderDTO(o domain.Order) orderDTO {
	dto := orderDTO{
		ID:              o.ID,
		ClientName:      o.ClientName,
		ClientEmail:     o.ClientEmail,
		ClientPhone:     o.ClientPhone,
		OrderDate:       domain.FormatDate(o.OrderDate),
		Status:          string(o.Status),
		TotalPrice:      o.TotalPrice.StringFixed(2),
		OrderedProducts: make([]orderedProductDTO, 0, len(o.OrderedProducts)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.DeliveryDate != nil {
		d := domain.FormatDate(*o.DeliveryDate)
		dto.DeliveryDate = &d
	}
	for _, p := range o.OrderedProducts {
		dto.OrderedProducts = append(dto.OrderedProducts, toOrderedProductDTO(p))
	}
	return dto
}

// The "length" of a page is the number of orders it carries; "total" counts every match.
func toOrderPageDTO(p domain.OrderPage) orderPageDTO {
	orders := make([]orderDTO, 0, len(p.Orders))
	for _, o := range p.Orders {
		orders = append(orders, toOrderDTO(o))
	}
	return orderPageDTO{
		Orders:    orders,
		Length:    len(orders),
		Total:     p.Total,
		Page:      p.Page,
		PageCount: p.PageCount,
		NextPage:  p.NextPage,
		PrevPage:  p.PrevPage,
	}
}

func toInventoryItemDTO(item domain.InventoryItem) inventoryItemDTO {
	return inventoryItemDTO{
		ID:          item.ID,
		ProductName: item.ProductName,
		Price:       item.Price.StringFixed(2),
		StockLevel:  item.StockLevel,
		DateAdded:   domain.FormatDate(item.DateAdded),
	}
}

func toStatsDTO(s domain.OrderStats) statsDTO {
	return statsDTO{
		TotalOrders:   s.TotalOrders,
		TotalRevenue:  s.TotalRevenue.StringFixed(2),
		PendingOrders: s.PendingOrders,
	}
}
