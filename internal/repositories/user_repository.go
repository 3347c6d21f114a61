package repositories

import (
	"gerai/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access. DeductCoins is
// the loyalty-coin ledger write: it must refuse to drive the balance
// negative, atomically, even under concurrent redemptions.
type UserRepository interface {
	// WithTx returns a repository bound to the given transaction handle.
	WithTx(tx *gorm.DB) UserRepository
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	DeductCoins(id string, amount int64) error
}
