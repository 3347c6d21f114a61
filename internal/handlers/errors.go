package handlers

import (
	"errors"

	"gerai/internal/services"

	"github.com/gofiber/fiber/v2"
)

// errorKinds maps each service sentinel to its stable machine-readable kind
// and HTTP status. Order matters only for readability; sentinels are
// disjoint.
var errorKinds = []struct {
	sentinel error
	kind     string
	status   int
}{
	{services.ErrValidation, "validation_error", fiber.StatusBadRequest},
	{services.ErrNotFound, "not_found", fiber.StatusNotFound},
	{services.ErrInvalidStateTransition, "invalid_state_transition", fiber.StatusConflict},
	{services.ErrInactive, "inactive", fiber.StatusUnprocessableEntity},
	{services.ErrInsufficientStock, "insufficient_stock", fiber.StatusUnprocessableEntity},
	{services.ErrInsufficientCoins, "insufficient_coins", fiber.StatusUnprocessableEntity},
	{services.ErrCouponInvalid, "coupon_invalid", fiber.StatusUnprocessableEntity},
	{services.ErrCouponExpired, "coupon_expired", fiber.StatusUnprocessableEntity},
	{services.ErrCouponExhausted, "coupon_exhausted", fiber.StatusUnprocessableEntity},
	{services.ErrCouponMinimumNotMet, "coupon_minimum_not_met", fiber.StatusUnprocessableEntity},
}

// respondError writes the service error verbatim with its mapped status and
// kind. Unrecognized errors become a 500 without leaking internals.
func respondError(c *fiber.Ctx, err error) error {
	for _, e := range errorKinds {
		if errors.Is(err, e.sentinel) {
			return c.Status(e.status).JSON(fiber.Map{
				"error":   e.kind,
				"message": err.Error(),
			})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_error",
		"message": "something went wrong",
	})
}
