package repositories

import (
	"fmt"

	"gerai/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOfferRepository is a GORM implementation of OfferRepository.
type GORMOfferRepository struct {
	db *gorm.DB
}

// NewGORMOfferRepository creates a new instance of GORMOfferRepository.
func NewGORMOfferRepository(db *gorm.DB) *GORMOfferRepository {
	return &GORMOfferRepository{
		db: db,
	}
}

// WithTx returns a repository bound to tx.
func (r *GORMOfferRepository) WithTx(tx *gorm.DB) OfferRepository {
	return &GORMOfferRepository{db: tx}
}

// GetActiveByCode retrieves an active offer by its code.
func (r *GORMOfferRepository) GetActiveByCode(code string) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.First(&offer, "code = ? AND active = ?", code, true).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("offer with code %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get offer by code %s: %w", code, err)
	}
	return &offer, nil
}

// IncrementUsage bumps used_count by one, but only while the usage limit
// still has headroom. Losing the race at commit time surfaces as
// ErrOfferExhausted and rolls the order back.
func (r *GORMOfferRepository) IncrementUsage(id string) error {
	res := r.db.Model(&models.Offer{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", id).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to increment usage for offer %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("offer %s: %w", id, ErrOfferExhausted)
	}
	return nil
}

// Create creates a new offer in the database.
func (r *GORMOfferRepository) Create(offer *models.Offer) error {
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	if err := r.db.Create(offer).Error; err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}
