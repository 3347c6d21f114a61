package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gerai/internal/models"
	"gerai/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MinCoinRedemption is the loyalty balance below which redemption is
// rejected outright.
const MinCoinRedemption = 50

// EventPublisher publishes order events to the message broker. Publication
// is best-effort: it happens after commit and never fails the order.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderLineInput is one requested line of a checkout.
type OrderLineInput struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput is the full checkout request.
type CreateOrderInput struct {
	UserID               string
	Items                []OrderLineInput
	AddressID            string
	Address              *AddressInput
	CouponCode           string
	UseCoins             bool
	PaymentType          string
	PaymentTransactionID string
}

// OrderService orchestrates checkout and cancellation: it validates input,
// resolves pricing and then executes every write of one order inside a
// single transaction. All collaborators are injected.
type OrderService struct {
	tx          repositories.TxRunner
	orders      repositories.OrderRepository
	catalog     repositories.CatalogRepository
	stock       repositories.StockLedger
	users       repositories.UserRepository
	offers      repositories.OfferRepository
	coupons     *CouponService
	addresses   *AddressService
	mqClient    EventPublisher
	shippingFee decimal.Decimal
	now         func() time.Time
}

// NewOrderService creates a new OrderService. mqClient may be nil, in which
// case event publication is skipped.
func NewOrderService(
	tx repositories.TxRunner,
	orders repositories.OrderRepository,
	catalog repositories.CatalogRepository,
	stock repositories.StockLedger,
	users repositories.UserRepository,
	offers repositories.OfferRepository,
	coupons *CouponService,
	addresses *AddressService,
	mqClient EventPublisher,
	shippingFee decimal.Decimal,
) *OrderService {
	return &OrderService{
		tx:          tx,
		orders:      orders,
		catalog:     catalog,
		stock:       stock,
		users:       users,
		offers:      offers,
		coupons:     coupons,
		addresses:   addresses,
		mqClient:    mqClient,
		shippingFee: shippingFee,
		now:         time.Now,
	}
}

// CreateOrder runs the checkout workflow and returns the persisted order.
func (s *OrderService) CreateOrder(in CreateOrderInput) (*models.Order, error) {
	user, err := s.users.GetByID(in.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, in.UserID)
		}
		return nil, err
	}

	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}

	if in.UseCoins && user.Coins < MinCoinRedemption {
		return nil, fmt.Errorf("%w: balance %d is below the minimum of %d",
			ErrInsufficientCoins, user.Coins, MinCoinRedemption)
	}

	items, totalAmount, err := s.resolveLines(in.Items)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.addresses.Resolve(in.UserID, in.AddressID, in.Address)
	if err != nil {
		return nil, err
	}

	// Pricing. A failing coupon aborts the whole order; there is no silent
	// no-discount fallback. The coupon discount is clamped to the subtotal
	// and the coin discount to the post-coupon remainder, so the combined
	// discount can never exceed the subtotal.
	couponDiscount := decimal.Zero
	var offer *models.Offer
	if in.CouponCode != "" {
		result, err := s.coupons.Validate(in.CouponCode, totalAmount, s.now())
		if err != nil {
			return nil, err
		}
		offer = result.Offer
		couponDiscount = result.DiscountAmount
		if couponDiscount.GreaterThan(totalAmount) {
			couponDiscount = totalAmount
		}
	}

	remainder := totalAmount.Sub(couponDiscount)
	var coinsRedeemed int64
	if in.UseCoins {
		coinsRedeemed = user.Coins
		if available := remainder.Floor().IntPart(); coinsRedeemed > available {
			coinsRedeemed = available
		}
	}
	coinDiscount := decimal.NewFromInt(coinsRedeemed)

	discountAmount := couponDiscount.Add(coinDiscount)
	grossAmount := totalAmount.Sub(discountAmount)
	netAmount := grossAmount.Add(s.shippingFee)

	paymentStatus := models.PaymentStatusPaid
	if in.PaymentType == models.PaymentTypeCOD {
		paymentStatus = models.PaymentStatusNotPaid
	}

	order := &models.Order{
		ID:                   uuid.New().String(),
		OrderNumber:          newOrderNumber(),
		UserID:               in.UserID,
		TotalAmount:          totalAmount,
		DiscountAmount:       discountAmount,
		GrossAmount:          grossAmount,
		ShippingAmount:       s.shippingFee,
		NetAmount:            netAmount,
		Status:               models.OrderStatusPlaced,
		PaymentStatus:        paymentStatus,
		PaymentType:          in.PaymentType,
		PaymentTransactionID: in.PaymentTransactionID,
		CouponCode:           in.CouponCode,
		CoinsRedeemed:        coinsRedeemed,
		Items:                items,
		ShippingAddress:      snapshot,
	}

	// One transaction around every write: coin deduction, coupon usage,
	// the aggregate insert and the stock decrements. Any failure rolls the
	// whole order back. The decrements re-validate stock atomically, so
	// the advisory pre-check above losing a race is harmless.
	err = s.tx.Transaction(func(tx *gorm.DB) error {
		if coinsRedeemed > 0 {
			if err := s.users.WithTx(tx).DeductCoins(in.UserID, coinsRedeemed); err != nil {
				if errors.Is(err, repositories.ErrInsufficientCoins) {
					return fmt.Errorf("%w: balance changed during checkout", ErrInsufficientCoins)
				}
				return err
			}
		}
		if offer != nil {
			if err := s.offers.WithTx(tx).IncrementUsage(offer.ID); err != nil {
				if errors.Is(err, repositories.ErrOfferExhausted) {
					return fmt.Errorf("%w: code %s", ErrCouponExhausted, in.CouponCode)
				}
				return err
			}
		}
		if err := s.orders.WithTx(tx).Create(order); err != nil {
			return err
		}
		ledger := s.stock.WithTx(tx)
		for i := range order.Items {
			if err := ledger.Decrement(itemRef(&order.Items[i]), order.Items[i].Quantity); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return fmt.Errorf("%w: product %s", ErrInsufficientStock, order.Items[i].ProductName)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent("order.created", order)

	return order, nil
}

// CancelOrder cancels an order owned by userID, restoring every line's stock
// inside one transaction. Delivered and already-cancelled orders are
// rejected; re-running a cancellation must not double-restock.
func (s *OrderService) CancelOrder(userID, orderID string) error {
	order, err := s.orders.GetByIDForUser(orderID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return err
	}

	if order.Status == models.OrderStatusDelivered || order.Status == models.OrderStatusCancelled {
		return fmt.Errorf("%w: order %s is %s and cannot be cancelled",
			ErrInvalidStateTransition, orderID, order.Status)
	}

	// The read above is advisory. The conditional MarkCancelled inside the
	// transaction is what actually guards the transition: a concurrent
	// cancellation that committed first makes it affect zero rows, so this
	// one rolls back before touching stock and cannot double-restock.
	err = s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).MarkCancelled(orderID); err != nil {
			if errors.Is(err, repositories.ErrInvalidState) {
				return fmt.Errorf("%w: order %s was already finalized",
					ErrInvalidStateTransition, orderID)
			}
			return err
		}
		ledger := s.stock.WithTx(tx)
		for i := range order.Items {
			if err := ledger.Increment(itemRef(&order.Items[i]), order.Items[i].Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.Status = models.OrderStatusCancelled
	s.publishEvent("order.cancelled", order)

	return nil
}

// GetOrder retrieves a single order scoped to its owning user.
func (s *OrderService) GetOrder(userID, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByIDForUser(orderID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	return order, nil
}

// ListOrders retrieves all orders belonging to a user.
func (s *OrderService) ListOrders(userID string) ([]models.Order, error) {
	return s.orders.ListByUser(userID)
}

// UpdateOrderStatus is the admin-driven status transition. Gating is enum
// membership only.
func (s *OrderService) UpdateOrderStatus(orderID, status string) error {
	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("%w: invalid order status %q", ErrValidation, status)
	}
	if err := s.orders.UpdateStatus(orderID, status); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return err
	}
	return nil
}

// UpdatePaymentStatus is the admin-driven payment transition.
func (s *OrderService) UpdatePaymentStatus(orderID, paymentStatus, transactionID string) error {
	if !models.ValidPaymentStatus(paymentStatus) {
		return fmt.Errorf("%w: invalid payment status %q", ErrValidation, paymentStatus)
	}
	if err := s.orders.UpdatePayment(orderID, paymentStatus, transactionID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return err
	}
	return nil
}

// resolveLines validates every requested line against the catalog, freezes
// the unit price and snapshot fields, and runs the advisory stock pre-check.
func (s *OrderService) resolveLines(lines []OrderLineInput) ([]models.OrderItem, decimal.Decimal, error) {
	totalAmount := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: quantity must be positive for product %s",
				ErrValidation, line.ProductID)
		}

		product, err := s.catalog.GetProductByID(line.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, decimal.Zero, fmt.Errorf("%w: product %s", ErrNotFound, line.ProductID)
			}
			return nil, decimal.Zero, err
		}
		if !product.Active {
			return nil, decimal.Zero, fmt.Errorf("%w: product %s", ErrInactive, product.Name)
		}

		item := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    line.Quantity,
		}

		if line.VariantID != "" {
			variant, err := s.catalog.GetVariantByID(line.VariantID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return nil, decimal.Zero, fmt.Errorf("%w: variant %s", ErrNotFound, line.VariantID)
				}
				return nil, decimal.Zero, err
			}
			if variant.ProductID != product.ID {
				return nil, decimal.Zero, fmt.Errorf("%w: variant %s does not belong to product %s",
					ErrValidation, variant.ID, product.ID)
			}
			if !variant.Active {
				return nil, decimal.Zero, fmt.Errorf("%w: variant %s of product %s",
					ErrInactive, variant.ID, product.Name)
			}
			variantID := variant.ID
			item.VariantID = &variantID
			item.Color = variant.Color
			item.Size = variant.Size
			item.Price = variant.Price
		}

		// Advisory pre-check only; the conditional decrement at commit
		// time is what actually guards the invariant.
		available, err := s.stock.Available(itemRef(&item))
		if err != nil {
			return nil, decimal.Zero, err
		}
		if line.Quantity > available {
			return nil, decimal.Zero, fmt.Errorf("%w: product %s (requested %d, available %d)",
				ErrInsufficientStock, product.Name, line.Quantity, available)
		}

		item.TotalAmount = item.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		totalAmount = totalAmount.Add(item.TotalAmount)
		items = append(items, item)
	}

	return items, totalAmount, nil
}

// publishEvent publishes an order event to the broker after commit. Failures
// are logged and never affect the committed order.
func (s *OrderService) publishEvent(event string, order *models.Order) {
	if s.mqClient == nil {
		return
	}
	payload := map[string]interface{}{
		"event":         event,
		"orderID":       order.ID,
		"orderNumber":   order.OrderNumber,
		"userID":        order.UserID,
		"status":        order.Status,
		"netAmount":     order.NetAmount,
		"paymentType":   order.PaymentType,
		"couponCode":    order.CouponCode,
		"coinsRedeemed": order.CoinsRedeemed,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", event, order.ID, err)
		return
	}
	if err := s.mqClient.Publish("order", event, body); err != nil {
		log.Printf("Warning: failed to publish %s event for order %s: %v", event, order.ID, err)
	}
}

func itemRef(item *models.OrderItem) repositories.ItemRef {
	ref := repositories.ItemRef{ProductID: item.ProductID}
	if item.VariantID != nil {
		ref.VariantID = *item.VariantID
	}
	return ref
}

// newOrderNumber returns "ORD-" plus 16 hex characters of a fresh UUID. The
// 64-bit space keeps birthday collisions on the unique index out of reach at
// any realistic order volume.
func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:16])
}
