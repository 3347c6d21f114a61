package services

import "errors"

// Error taxonomy for the order subsystem. Every error raised inside the
// checkout or cancellation workflow wraps exactly one of these sentinels
// with a message naming the offending entity; handlers map each kind to a
// status code with errors.Is. None are swallowed or downgraded.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrInactive               = errors.New("not purchasable")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrCouponInvalid          = errors.New("coupon invalid")
	ErrCouponExpired          = errors.New("coupon expired")
	ErrCouponExhausted        = errors.New("coupon usage limit reached")
	ErrCouponMinimumNotMet    = errors.New("coupon minimum order amount not met")
	ErrInsufficientCoins      = errors.New("insufficient coins")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
