package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Offer discount types.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Offer is an admin-defined coupon: a code with a validity window, an order
// minimum and an optional usage cap. Invariant: UsedCount <= *UsageLimit
// whenever a limit is set; UsedCount grows exactly once per order that
// successfully commits with the coupon applied.
type Offer struct {
	ID                string           `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Code              string           `json:"code" gorm:"uniqueIndex;type:varchar(50);not null" validate:"required,min=3,max=50"`
	DiscountType      string           `json:"discount_type" gorm:"type:varchar(20);not null" validate:"required,oneof=percentage fixed"`
	DiscountValue     decimal.Decimal  `json:"discount_value" gorm:"type:decimal(20,2);not null" validate:"required"`
	MinOrderAmount    decimal.Decimal  `json:"min_order_amount" gorm:"type:decimal(20,2);not null;default:0"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty" gorm:"type:decimal(20,2)"`
	StartDate         time.Time        `json:"start_date" gorm:"index;not null" validate:"required"`
	EndDate           time.Time        `json:"end_date" gorm:"index;not null" validate:"required"`
	UsageLimit        *int             `json:"usage_limit,omitempty"` // nil = unlimited
	UsedCount         int              `json:"used_count" gorm:"not null;default:0"`
	Active            bool             `json:"active" gorm:"not null;default:true"`
	gorm.Model
}
