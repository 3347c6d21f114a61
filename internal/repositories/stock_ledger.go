package repositories

import "gorm.io/gorm"

// ItemRef names a stock-bearing entity: a product, or a (product, variant)
// pair. When VariantID is set the variant's counter is authoritative.
type ItemRef struct {
	ProductID string
	VariantID string
}

// StockLedger defines the interface for inventory counters. Decrement must
// be atomic and conditional: it fails with ErrInsufficientStock instead of
// driving the counter negative, even under concurrent callers.
type StockLedger interface {
	// WithTx returns a ledger bound to the given transaction handle so
	// stock mutations commit or roll back with the rest of an order write.
	WithTx(tx *gorm.DB) StockLedger
	Available(ref ItemRef) (int, error)
	Decrement(ref ItemRef, quantity int) error
	Increment(ref ItemRef, quantity int) error
}
