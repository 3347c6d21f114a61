package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a product in the catalog. StockQuantity is the
// product-level inventory counter; it must never go below zero.
type Product struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name          string          `json:"name" validate:"required,min=3,max=100"`
	Description   string          `json:"description" validate:"omitempty,max=500"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(20,2);not null" validate:"required"`
	StockQuantity int             `json:"stock_quantity" gorm:"not null;default:0" validate:"gte=0"`
	Active        bool            `json:"active" gorm:"not null;default:true"`
	gorm.Model                    // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// ProductVariant is a size/color variation of a product carrying its own
// price and inventory counter. When an order line names a variant, the
// variant's stock and price are authoritative over the product's.
type ProductVariant struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	ProductID     string          `json:"product_id" gorm:"index;type:varchar(36);not null" validate:"required,uuid"`
	Color         string          `json:"color" validate:"omitempty,max=50"`
	Size          string          `json:"size" validate:"omitempty,max=50"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(20,2);not null" validate:"required"`
	StockQuantity int             `json:"stock_quantity" gorm:"not null;default:0" validate:"gte=0"`
	Active        bool            `json:"active" gorm:"not null;default:true"`
	gorm.Model
}
