package repositories

import (
	"gerai/internal/models"
)

// AddressRepository defines the interface for saved-address-book access.
type AddressRepository interface {
	GetByIDForUser(id, userID string) (*models.Address, error)
	Create(address *models.Address) error
}
