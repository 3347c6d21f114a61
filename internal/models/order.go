package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses. Forward transitions (placed -> processing -> shipping ->
// delivered) are admin-driven; cancelled is terminal and reachable from any
// non-delivered state.
const (
	OrderStatusPlaced     = "placed"
	OrderStatusProcessing = "processing"
	OrderStatusShipping   = "shipping"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses.
const (
	PaymentStatusPaid    = "paid"
	PaymentStatusNotPaid = "not_paid"
)

// PaymentTypeCOD marks cash-on-delivery; such orders start as not_paid.
const PaymentTypeCOD = "cod"

// Order is the root of the order aggregate. Monetary fields satisfy
// NetAmount = (TotalAmount - DiscountAmount) + ShippingAmount at all times.
// Orders are never physically deleted; cancellation is a status transition.
type Order struct {
	ID                   string                   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber          string                   `json:"order_number" gorm:"uniqueIndex;type:varchar(20);not null"`
	UserID               string                   `json:"user_id" gorm:"index;type:varchar(36);not null"`
	TotalAmount          decimal.Decimal          `json:"total_amount" gorm:"type:decimal(20,2);not null"`
	DiscountAmount       decimal.Decimal          `json:"discount_amount" gorm:"type:decimal(20,2);not null"`
	GrossAmount          decimal.Decimal          `json:"gross_amount" gorm:"type:decimal(20,2);not null"`
	ShippingAmount       decimal.Decimal          `json:"shipping_amount" gorm:"type:decimal(20,2);not null"`
	NetAmount            decimal.Decimal          `json:"net_amount" gorm:"type:decimal(20,2);not null"`
	Status               string                   `json:"status" gorm:"type:varchar(20);not null"`
	PaymentStatus        string                   `json:"payment_status" gorm:"type:varchar(20);not null"`
	PaymentType          string                   `json:"payment_type" gorm:"type:varchar(30);not null"`
	PaymentTransactionID string                   `json:"payment_transaction_id,omitempty" gorm:"type:varchar(100)"`
	CouponCode           string                   `json:"coupon_code,omitempty" gorm:"type:varchar(50)"`
	CoinsRedeemed        int64                    `json:"coins_redeemed" gorm:"not null;default:0"`
	Items                []OrderItem              `json:"items"`
	ShippingAddress      *ShippingAddressSnapshot `json:"shipping_address,omitempty"`
	gorm.Model
}

// OrderItem is a denormalized snapshot of one purchased line. Name, color,
// size and price are frozen at purchase time so later catalog edits do not
// rewrite history. Created with the order, never mutated afterward.
type OrderItem struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string          `json:"order_id" gorm:"index;type:varchar(36);not null"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36);not null"`
	VariantID   *string         `json:"variant_id,omitempty" gorm:"type:varchar(36)"`
	ProductName string          `json:"product_name" gorm:"type:varchar(100);not null"`
	Color       string          `json:"color,omitempty" gorm:"type:varchar(50)"`
	Size        string          `json:"size,omitempty" gorm:"type:varchar(50)"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(20,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(20,2);not null"`
	gorm.Model
}

// ShippingAddressSnapshot is the delivery address copied at order time,
// decoupled from the user's saved address book.
type ShippingAddressSnapshot struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID    string `json:"order_id" gorm:"uniqueIndex;type:varchar(36);not null"`
	Name       string `json:"name" gorm:"type:varchar(100);not null"`
	Line1      string `json:"line1" gorm:"type:varchar(255);not null"`
	Line2      string `json:"line2,omitempty" gorm:"type:varchar(255)"`
	City       string `json:"city" gorm:"type:varchar(100);not null"`
	State      string `json:"state" gorm:"type:varchar(100);not null"`
	PostalCode string `json:"postal_code" gorm:"type:varchar(20);not null"`
	Country    string `json:"country" gorm:"type:varchar(100);not null"`
	Phone      string `json:"phone" gorm:"type:varchar(30);not null"`
	gorm.Model
}

// ValidOrderStatus reports whether s is a member of the order status enum.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPlaced, OrderStatusProcessing, OrderStatusShipping,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a member of the payment status enum.
func ValidPaymentStatus(s string) bool {
	return s == PaymentStatusPaid || s == PaymentStatusNotPaid
}
