package repositories

import "gorm.io/gorm"

// TxRunner executes fn inside a single database transaction. Every write a
// repository performs with the handle passed to fn either commits together
// with the rest or not at all.
type TxRunner interface {
	Transaction(fn func(tx *gorm.DB) error) error
}

// GormTxRunner is the production TxRunner backed by a GORM connection.
type GormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner creates a TxRunner on top of db.
func NewGormTxRunner(db *gorm.DB) *GormTxRunner {
	return &GormTxRunner{db: db}
}

// Transaction runs fn inside db.Transaction; any error from fn rolls back
// every write made through the tx handle.
func (r *GormTxRunner) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// NoopTxRunner runs fn without a real transaction. It exists so services can
// be exercised against in-memory repositories, which ignore the tx handle.
type NoopTxRunner struct{}

// Transaction invokes fn with a nil handle.
func (NoopTxRunner) Transaction(fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
