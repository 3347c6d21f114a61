package repositories

import "errors"

// Sentinel errors shared by all repository implementations. Services wrap
// these into their own taxonomy; callers match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrOfferExhausted    = errors.New("offer usage limit reached")
	ErrInvalidState      = errors.New("invalid state for requested transition")
)
