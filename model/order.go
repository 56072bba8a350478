package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "CREATED"
	OrderStatusPaymentReceived OrderStatus = "PAYMENT_RECEIVED"
	OrderStatusShipped         OrderStatus = "SHIPPED"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

type Order struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	Status         OrderStatus     `json:"status"`
	Total          decimal.Decimal `json:"total"`
	AdditionalInfo string          `json:"additional_info,omitempty"`
	Date           time.Time       `json:"date"`
}

// OrderLine is one product/quantity entry of an order.
type OrderLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type Product struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	StockQty   int    `json:"stock_qty"`
	SalesCount int    `json:"sales_count"`
}

type Cart struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
}

type CartItem struct {
	CartID    int64 `json:"cart_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// User holds the fields needed to personalize a notification.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}
