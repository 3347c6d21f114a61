package repositories

import (
	"gerai/internal/models"

	"gorm.io/gorm"
)

// OfferRepository defines the interface for coupon/offer data access.
// IncrementUsage re-checks the usage limit atomically at commit time, so the
// used_count <= usage_limit invariant holds under concurrent checkouts.
type OfferRepository interface {
	// WithTx returns a repository bound to the given transaction handle.
	WithTx(tx *gorm.DB) OfferRepository
	GetActiveByCode(code string) (*models.Offer, error)
	IncrementUsage(id string) error
	Create(offer *models.Offer) error
}
