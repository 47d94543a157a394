package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

// Payment methods
const (
	PaymentCOD   = "cod"
	PaymentGCash = "gcash"
	PaymentCard  = "card"
)

// Payment statuses
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// orderTransitions lists the statuses an admin may move an order to.
var orderTransitions = map[string][]string{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidPaymentMethod reports whether m is an accepted payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCOD, PaymentGCash, PaymentCard:
		return true
	}
	return false
}

// IsOnlinePayment reports whether the method needs a payment confirmation
// step after the order is placed.
func IsOnlinePayment(m string) bool {
	return m == PaymentGCash || m == PaymentCard
}

// Order is the model for the 'orders' table
type Order struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"userId" db:"user_id"`
	OrderNumber     string          `json:"orderNumber" db:"order_number"`
	Status          string          `json:"status" db:"status"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	ShippingFee     decimal.Decimal `json:"shippingFee" db:"shipping_fee"`
	Total           decimal.Decimal `json:"total" db:"total"`
	ShippingAddress string          `json:"shippingAddress" db:"shipping_address"`
	PaymentMethod   string          `json:"paymentMethod" db:"payment_method"`
	Notes           string          `json:"notes" db:"notes"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`

	ItemCount     int    `json:"itemCount,omitempty" db:"-"`
	PaymentStatus string `json:"paymentStatus,omitempty" db:"-"`
	CustomerName  string `json:"customerName,omitempty" db:"-"`
}

// OrderItem is the model for the 'order_items' table
type OrderItem struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"orderId" db:"order_id"`
	ProductID   int64           `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"` // Price at the time of purchase
	LineTotal   decimal.Decimal `json:"lineTotal" db:"line_total"`
}

// Payment is the model for the 'payments' table
type Payment struct {
	ID        int64           `json:"id" db:"id"`
	OrderID   int64           `json:"orderId" db:"order_id"`
	Method    string          `json:"method" db:"method"`
	Status    string          `json:"status" db:"status"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Reference sql.NullString  `json:"-" db:"reference"`
	PaidAt    sql.NullTime    `json:"-" db:"paid_at"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}
