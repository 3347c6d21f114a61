package repositories

import (
	"fmt"

	"gerai/internal/models"

	"gorm.io/gorm"
)

// GORMStockLedger is a GORM implementation of StockLedger. Mutations are
// single conditional UPDATE statements, so the stock_quantity >= 0 invariant
// holds without row locks or a prior read.
type GORMStockLedger struct {
	db *gorm.DB
}

// NewGORMStockLedger creates a new instance of GORMStockLedger.
func NewGORMStockLedger(db *gorm.DB) *GORMStockLedger {
	return &GORMStockLedger{
		db: db,
	}
}

// WithTx returns a ledger bound to tx.
func (l *GORMStockLedger) WithTx(tx *gorm.DB) StockLedger {
	return &GORMStockLedger{db: tx}
}

// Available reads the current counter for ref. The value is advisory only:
// by the time the caller acts on it, a concurrent order may have changed it.
func (l *GORMStockLedger) Available(ref ItemRef) (int, error) {
	var err error
	var quantity int
	if ref.VariantID != "" {
		var variant models.ProductVariant
		err = l.db.Select("stock_quantity").First(&variant, "id = ?", ref.VariantID).Error
		quantity = variant.StockQuantity
	} else {
		var product models.Product
		err = l.db.Select("stock_quantity").First(&product, "id = ?", ref.ProductID).Error
		quantity = product.StockQuantity
	}
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, fmt.Errorf("stock entity %s: %w", l.entityID(ref), ErrNotFound)
		}
		return 0, fmt.Errorf("failed to read stock for %s: %w", l.entityID(ref), err)
	}
	return quantity, nil
}

// Decrement subtracts quantity from the counter only if enough stock remains.
// Zero rows affected means the entity is missing or short on stock; the
// follow-up existence check disambiguates the two.
func (l *GORMStockLedger) Decrement(ref ItemRef, quantity int) error {
	res := l.model(ref).
		Where("stock_quantity >= ?", quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to decrement stock for %s: %w", l.entityID(ref), res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := l.Available(ref); err != nil {
			return err
		}
		return fmt.Errorf("stock entity %s: %w", l.entityID(ref), ErrInsufficientStock)
	}
	return nil
}

// Increment adds quantity back to the counter, used when an order is
// cancelled and its lines are restocked.
func (l *GORMStockLedger) Increment(ref ItemRef, quantity int) error {
	res := l.model(ref).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to increment stock for %s: %w", l.entityID(ref), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("stock entity %s: %w", l.entityID(ref), ErrNotFound)
	}
	return nil
}

func (l *GORMStockLedger) model(ref ItemRef) *gorm.DB {
	if ref.VariantID != "" {
		return l.db.Model(&models.ProductVariant{}).Where("id = ?", ref.VariantID)
	}
	return l.db.Model(&models.Product{}).Where("id = ?", ref.ProductID)
}

func (l *GORMStockLedger) entityID(ref ItemRef) string {
	if ref.VariantID != "" {
		return ref.VariantID
	}
	return ref.ProductID
}
