package repositories

import (
	"gerai/internal/models"
)

// CatalogRepository defines the read side of the catalog needed by checkout,
// plus the creates used for seeding. Full catalog CRUD lives elsewhere.
type CatalogRepository interface {
	GetProductByID(id string) (*models.Product, error)
	GetVariantByID(id string) (*models.ProductVariant, error)
	CreateProduct(product *models.Product) error
	CreateVariant(variant *models.ProductVariant) error
}
