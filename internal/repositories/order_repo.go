package repositories

import (
	"gerai/internal/models"

	"gorm.io/gorm"
)

// OrderRepository defines the interface for order aggregate access. Create
// persists the order together with its items and address snapshot; reads
// return the full aggregate.
type OrderRepository interface {
	// WithTx returns a repository bound to the given transaction handle.
	WithTx(tx *gorm.DB) OrderRepository
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	GetByIDForUser(id, userID string) (*models.Order, error)
	ListByUser(userID string) ([]models.Order, error)
	UpdateStatus(id string, status string) error
	UpdatePayment(id string, paymentStatus string, transactionID string) error
	// MarkCancelled transitions the order to cancelled only while it is
	// still cancellable; ErrInvalidState when it was already finalized.
	MarkCancelled(id string) error
	// Orders are never deleted; cancellation is a status transition.
}
