package services

import (
	"errors"
	"fmt"

	"gerai/internal/models"
	"gerai/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// AddressInput is a one-off delivery address supplied inline at checkout.
type AddressInput struct {
	Name       string `json:"name" validate:"required,max=100"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2,omitempty" validate:"omitempty,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"required,max=30"`
}

// AddressService resolves either a saved address or an inline payload into a
// normalized shipping snapshot for an order.
type AddressService struct {
	addresses repositories.AddressRepository
	validate  *validator.Validate
}

// NewAddressService creates a new AddressService.
func NewAddressService(addresses repositories.AddressRepository) *AddressService {
	return &AddressService{
		addresses: addresses,
		validate:  validator.New(),
	}
}

// Resolve requires exactly one of addressID or inline and returns the
// snapshot to persist with the order.
func (s *AddressService) Resolve(userID, addressID string, inline *AddressInput) (*models.ShippingAddressSnapshot, error) {
	switch {
	case addressID == "" && inline == nil:
		return nil, fmt.Errorf("%w: a shipping address is required", ErrValidation)
	case addressID != "" && inline != nil:
		return nil, fmt.Errorf("%w: provide either a saved address or an inline address, not both", ErrValidation)
	}

	if addressID != "" {
		saved, err := s.addresses.GetByIDForUser(addressID, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%w: address %s", ErrNotFound, addressID)
			}
			return nil, err
		}
		return &models.ShippingAddressSnapshot{
			Name:       saved.Name,
			Line1:      saved.Line1,
			Line2:      saved.Line2,
			City:       saved.City,
			State:      saved.State,
			PostalCode: saved.PostalCode,
			Country:    saved.Country,
			Phone:      saved.Phone,
		}, nil
	}

	if err := s.validate.Struct(inline); err != nil {
		return nil, fmt.Errorf("%w: shipping address: %v", ErrValidation, err)
	}
	return &models.ShippingAddressSnapshot{
		Name:       inline.Name,
		Line1:      inline.Line1,
		Line2:      inline.Line2,
		City:       inline.City,
		State:      inline.State,
		PostalCode: inline.PostalCode,
		Country:    inline.Country,
		Phone:      inline.Phone,
	}, nil
}
