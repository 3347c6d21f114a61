package repositories

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// MockStockLedger is an in-memory implementation of StockLedger, keyed by
// entity ID (variant ID when present, else product ID). It mirrors the
// conditional-decrement semantics of the GORM ledger.
type MockStockLedger struct {
	counters map[string]int
	mu       sync.RWMutex
}

// NewMockStockLedger creates a new instance of MockStockLedger.
func NewMockStockLedger() *MockStockLedger {
	return &MockStockLedger{
		counters: make(map[string]int),
	}
}

// WithTx returns the ledger itself; the in-memory ledger has no transactions.
func (l *MockStockLedger) WithTx(_ *gorm.DB) StockLedger {
	return l
}

// Set seeds the counter for an entity.
func (l *MockStockLedger) Set(id string, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters[id] = quantity
}

// Available returns the current counter for ref.
func (l *MockStockLedger) Available(ref ItemRef) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	quantity, ok := l.counters[l.key(ref)]
	if !ok {
		return 0, fmt.Errorf("stock entity %s: %w", l.key(ref), ErrNotFound)
	}
	return quantity, nil
}

// Decrement subtracts quantity, failing if not enough stock remains.
func (l *MockStockLedger) Decrement(ref ItemRef, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.counters[l.key(ref)]
	if !ok {
		return fmt.Errorf("stock entity %s: %w", l.key(ref), ErrNotFound)
	}
	if current < quantity {
		return fmt.Errorf("stock entity %s: %w", l.key(ref), ErrInsufficientStock)
	}
	l.counters[l.key(ref)] = current - quantity
	return nil
}

// Increment adds quantity back.
func (l *MockStockLedger) Increment(ref ItemRef, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.counters[l.key(ref)]
	if !ok {
		return fmt.Errorf("stock entity %s: %w", l.key(ref), ErrNotFound)
	}
	l.counters[l.key(ref)] = current + quantity
	return nil
}

func (l *MockStockLedger) key(ref ItemRef) string {
	if ref.VariantID != "" {
		return ref.VariantID
	}
	return ref.ProductID
}
