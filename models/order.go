package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipping  OrderStatus = "SHIPPING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipping,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Final reports whether the reconciler must leave the order untouched.
func (s OrderStatus) Final() bool {
	return s != OrderStatusPending
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items"`
	Payment         *Payment        `json:"payment,omitempty"`
	User            *UserSummary    `json:"user,omitempty"`
}

// OrderItem carries the price captured at order time; it never follows later catalog edits.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *ProductSummary `json:"product,omitempty"`
}

type OrderLine struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

// CreateOrderRequest builds an order from Items when present, otherwise from the
// caller's cart. TotalAmount is informational only.
type CreateOrderRequest struct {
	ShippingAddress string           `json:"shipping_address" binding:"required"`
	Note            string           `json:"note"`
	Items           []OrderLine      `json:"items" binding:"omitempty,dive"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
}

type ListOrdersQuery struct {
	Status OrderStatus `form:"status"`
	Page   int         `form:"page"`
	Limit  int         `form:"limit"`
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize applies paging defaults and clamps the limit.
func (q ListOrdersQuery) Normalize() ListOrdersQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

func (q ListOrdersQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

type OrderList struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type OrderEvent struct {
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ProductIDs  []int64         `json:"product_ids,omitempty"`
	EventType   string          `json:"event_type"` // order_created, order_paid, order_cancelled, order_status_overridden
}

const (
	EventOrderCreated          = "order_created"
	EventOrderPaid             = "order_paid"
	EventOrderCancelled        = "order_cancelled"
	EventOrderStatusOverridden = "order_status_overridden"
)
