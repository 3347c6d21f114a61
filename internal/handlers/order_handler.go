package handlers

import (
	"fmt"
	"log"

	"gerai/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	// Admin transitions; role checks belong to the auth layer.
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
	orderRoutes.Patch("/:id/payment", h.HandleUpdatePaymentStatus)
}

// CreateOrderRequest is the checkout request body.
type CreateOrderRequest struct {
	Items                []services.OrderLineInput `json:"items" validate:"required,min=1,dive"`
	ShippingAddressID    string                    `json:"shipping_address_id,omitempty"`
	ShippingAddress      *services.AddressInput    `json:"shipping_address,omitempty"`
	CouponCode           string                    `json:"coupon_code,omitempty"`
	UseCoins             bool                      `json:"use_coins"`
	PaymentType          string                    `json:"payment_type" validate:"required"`
	PaymentTransactionID string                    `json:"payment_transaction_id,omitempty"`
}

// HandleCreateOrder runs the checkout workflow for the authenticated user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create order request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	order, err := h.service.CreateOrder(services.CreateOrderInput{
		UserID:               userIDFromCtx(c),
		Items:                req.Items,
		AddressID:            req.ShippingAddressID,
		Address:              req.ShippingAddress,
		CouponCode:           req.CouponCode,
		UseCoins:             req.UseCoins,
		PaymentType:          req.PaymentType,
		PaymentTransactionID: req.PaymentTransactionID,
	})
	if err != nil {
		log.Printf("Error creating order: %v", err)
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListOrders retrieves the authenticated user's orders.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(userIDFromCtx(c))
	if err != nil {
		log.Printf("Error listing orders: %v", err)
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrder retrieves a single order owned by the authenticated user.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(userIDFromCtx(c), c.Params("id"))
	if err != nil {
		log.Printf("Error getting order %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleCancelOrder cancels an order owned by the authenticated user,
// restocking every line.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if err := h.service.CancelOrder(userIDFromCtx(c), orderID); err != nil {
		log.Printf("Error cancelling order %s: %v", orderID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s cancelled", orderID),
	})
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body for status update",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	orderID := c.Params("id")
	if err := h.service.UpdateOrderStatus(orderID, req.Status); err != nil {
		log.Printf("Error updating order status for order %s: %v", orderID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated to %s", orderID, req.Status),
	})
}

// HandleUpdatePaymentStatus updates the payment status of an existing order.
func (h *OrderHandler) HandleUpdatePaymentStatus(c *fiber.Ctx) error {
	var req struct {
		PaymentStatus string `json:"payment_status" validate:"required"`
		TransactionID string `json:"transaction_id,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body for payment update",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	orderID := c.Params("id")
	if err := h.service.UpdatePaymentStatus(orderID, req.PaymentStatus, req.TransactionID); err != nil {
		log.Printf("Error updating payment status for order %s: %v", orderID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s payment status updated to %s", orderID, req.PaymentStatus),
	})
}

// userIDFromCtx reads the user identity injected by the auth middleware.
func userIDFromCtx(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

// validationErrorResponse renders validator errors field by field.
func validationErrorResponse(c *fiber.Ctx, err error) error {
	errorMessages := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
