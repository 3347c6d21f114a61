package services

import (
	"errors"
	"fmt"
	"time"

	"gerai/internal/models"
	"gerai/internal/repositories"

	"github.com/shopspring/decimal"
)

var percentBase = decimal.NewFromInt(100)

// CouponService evaluates coupon codes against a subtotal and a point in
// time. Validation is pure and idempotent: it never mutates usage counters.
// Usage accounting happens in the orchestrator, inside the order commit.
type CouponService struct {
	offers repositories.OfferRepository
}

// NewCouponService creates a new CouponService.
func NewCouponService(offers repositories.OfferRepository) *CouponService {
	return &CouponService{
		offers: offers,
	}
}

// CouponResult is the outcome of a successful validation.
type CouponResult struct {
	Offer          *models.Offer   `json:"-"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalTotal     decimal.Decimal `json:"final_total"`
}

// Validate checks code against subtotal at time now. Rules apply in order,
// first failure wins: active lookup, validity window, usage limit, order
// minimum, then the discount computation. A fixed discount is returned flat,
// not clamped to the subtotal; the caller clamps downstream.
func (s *CouponService) Validate(code string, subtotal decimal.Decimal, now time.Time) (*CouponResult, error) {
	if subtotal.IsNegative() {
		return nil, fmt.Errorf("%w: subtotal must not be negative", ErrValidation)
	}

	offer, err := s.offers.GetActiveByCode(code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: code %s", ErrCouponInvalid, code)
		}
		return nil, fmt.Errorf("failed to look up coupon %s: %w", code, err)
	}

	if now.Before(offer.StartDate) || now.After(offer.EndDate) {
		return nil, fmt.Errorf("%w: code %s", ErrCouponExpired, code)
	}

	if offer.UsageLimit != nil && offer.UsedCount >= *offer.UsageLimit {
		return nil, fmt.Errorf("%w: code %s", ErrCouponExhausted, code)
	}

	if subtotal.LessThan(offer.MinOrderAmount) {
		return nil, fmt.Errorf("%w: code %s requires a minimum order of %s",
			ErrCouponMinimumNotMet, code, offer.MinOrderAmount.StringFixed(2))
	}

	var discount decimal.Decimal
	switch offer.DiscountType {
	case models.DiscountTypePercentage:
		discount = subtotal.Mul(offer.DiscountValue).Div(percentBase)
		if offer.MaxDiscountAmount != nil && discount.GreaterThan(*offer.MaxDiscountAmount) {
			discount = *offer.MaxDiscountAmount
		}
	case models.DiscountTypeFixed:
		discount = offer.DiscountValue
	default:
		return nil, fmt.Errorf("%w: code %s has unknown discount type %q",
			ErrCouponInvalid, code, offer.DiscountType)
	}

	return &CouponResult{
		Offer:          offer,
		DiscountAmount: discount,
		FinalTotal:     subtotal.Sub(discount),
	}, nil
}
