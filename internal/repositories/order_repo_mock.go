package repositories

import (
	"fmt"
	"sync"

	"gerai/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// WithTx returns the repository itself; the in-memory store has no
// transactions.
func (r *MockOrderRepository) WithTx(_ *gorm.DB) OrderRepository {
	return r
}

// Create stores a new order aggregate.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	if order.ShippingAddress != nil {
		if order.ShippingAddress.ID == "" {
			order.ShippingAddress.ID = uuid.New().String()
		}
		order.ShippingAddress.OrderID = order.ID
	}
	r.orders[order.ID] = *order
	return nil
}

// GetByID returns an order aggregate by its ID.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return &order, nil
}

// GetByIDForUser returns an order aggregate scoped to its owning user.
func (r *MockOrderRepository) GetByIDForUser(id, userID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok || order.UserID != userID {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return &order, nil
}

// ListByUser returns all orders belonging to a user.
func (r *MockOrderRepository) ListByUser(userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.UserID == userID {
			orderList = append(orderList, order)
		}
	}
	return orderList, nil
}

// UpdateStatus updates the status of an order.
func (r *MockOrderRepository) UpdateStatus(id string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	order.Status = status
	r.orders[id] = order
	return nil
}

// MarkCancelled flips the order to cancelled only while it is still
// cancellable, mirroring the conditional update of the GORM repository.
func (r *MockOrderRepository) MarkCancelled(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	if order.Status == models.OrderStatusDelivered || order.Status == models.OrderStatusCancelled {
		return fmt.Errorf("order with ID %s: %w", id, ErrInvalidState)
	}
	order.Status = models.OrderStatusCancelled
	r.orders[id] = order
	return nil
}

// UpdatePayment updates the payment status of an order.
func (r *MockOrderRepository) UpdatePayment(id string, paymentStatus string, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	order.PaymentStatus = paymentStatus
	if transactionID != "" {
		order.PaymentTransactionID = transactionID
	}
	r.orders[id] = order
	return nil
}
