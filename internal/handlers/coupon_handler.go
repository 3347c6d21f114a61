package handlers

import (
	"log"
	"time"

	"gerai/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// CouponHandler handles HTTP requests for coupon validation. The validate
// endpoint is a pure preview: it never touches usage counters, so carts can
// call it repeatedly before checkout.
type CouponHandler struct {
	service  *services.CouponService
	validate *validator.Validate
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(service *services.CouponService) *CouponHandler {
	return &CouponHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the coupon routes with the Fiber app.
func (h *CouponHandler) RegisterRoutes(router fiber.Router) {
	couponRoutes := router.Group("/coupons")
	couponRoutes.Post("/validate", h.HandleValidateCoupon)
}

// ValidateCouponRequest is the cart-preview request body. Subtotal carries no
// required tag: zero is a legitimate cart value and decimal's zero would fail
// it. The service rejects negative subtotals.
type ValidateCouponRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// HandleValidateCoupon evaluates a coupon code against a subtotal.
func (h *CouponHandler) HandleValidateCoupon(c *fiber.Ctx) error {
	var req ValidateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.service.Validate(req.Code, req.Subtotal, time.Now())
	if err != nil {
		log.Printf("Coupon validation failed for code %s: %v", req.Code, err)
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"discount_amount": result.DiscountAmount,
		"final_total":     result.FinalTotal,
	})
}
