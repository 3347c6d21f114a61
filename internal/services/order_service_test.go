package services_test

import (
	"fmt"
	"testing"

	"gerai/internal/models"
	"gerai/internal/repositories"
	"gerai/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockEventPublisher is a mock implementation of services.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(exchange, routingKey string, body []byte) error {
	args := m.Called(exchange, routingKey, body)
	return args.Error(0)
}

// failingStockLedger passes the advisory pre-check but fails every decrement,
// standing in for a concurrent order winning the race at commit time.
type failingStockLedger struct {
	inner repositories.StockLedger
}

func (l *failingStockLedger) WithTx(tx *gorm.DB) repositories.StockLedger {
	return &failingStockLedger{inner: l.inner.WithTx(tx)}
}

func (l *failingStockLedger) Available(ref repositories.ItemRef) (int, error) {
	return l.inner.Available(ref)
}

func (l *failingStockLedger) Decrement(ref repositories.ItemRef, quantity int) error {
	return fmt.Errorf("stock entity %s: %w", ref.ProductID, repositories.ErrInsufficientStock)
}

func (l *failingStockLedger) Increment(ref repositories.ItemRef, quantity int) error {
	return l.inner.Increment(ref, quantity)
}

type orderEnv struct {
	db      *gorm.DB
	service *services.OrderService
	mq      *MockEventPublisher
}

// setupOrderEnv builds the orchestrator on an isolated in-memory SQLite
// database with real GORM repositories, so transactional behavior is
// exercised for real. A custom ledger may be substituted.
func setupOrderEnv(t *testing.T, ledger repositories.StockLedger) *orderEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.ProductVariant{},
		&models.Offer{}, &models.Address{},
		&models.Order{}, &models.OrderItem{}, &models.ShippingAddressSnapshot{},
	)
	require.NoError(t, err)

	orderRepo := repositories.NewGORMOrderRepository(db)
	catalogRepo := repositories.NewGORMCatalogRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	offerRepo := repositories.NewGORMOfferRepository(db)
	addressRepo := repositories.NewGORMAddressRepository(db)
	if ledger == nil {
		ledger = repositories.NewGORMStockLedger(db)
	}

	couponService := services.NewCouponService(offerRepo)
	addressService := services.NewAddressService(addressRepo)
	mq := new(MockEventPublisher)
	mq.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	service := services.NewOrderService(
		repositories.NewGormTxRunner(db),
		orderRepo, catalogRepo, ledger, userRepo, offerRepo,
		couponService, addressService, mq,
		decimal.NewFromInt(50),
	)

	return &orderEnv{db: db, service: service, mq: mq}
}

func (e *orderEnv) seedUser(t *testing.T, coins int64) *models.User {
	t.Helper()
	user := &models.User{
		ID:       "user-1",
		Username: "buyer",
		Email:    "buyer@example.com",
		Password: "hashed",
		Coins:    coins,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *orderEnv) seedProduct(t *testing.T, id string, price int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:            id,
		Name:          "Product " + id,
		Price:         decimal.NewFromInt(price),
		StockQuantity: stock,
		Active:        true,
	}
	require.NoError(t, e.db.Create(product).Error)
	return product
}

func (e *orderEnv) seedVariant(t *testing.T, id, productID string, price int64, stock int) *models.ProductVariant {
	t.Helper()
	variant := &models.ProductVariant{
		ID:            id,
		ProductID:     productID,
		Color:         "black",
		Size:          "M",
		Price:         decimal.NewFromInt(price),
		StockQuantity: stock,
		Active:        true,
	}
	require.NoError(t, e.db.Create(variant).Error)
	return variant
}

func inlineAddress() *services.AddressInput {
	return &services.AddressInput{
		Name:       "Buyer One",
		Line1:      "12 Market Road",
		City:       "Pune",
		State:      "Maharashtra",
		PostalCode: "411001",
		Country:    "India",
		Phone:      "+91-9000000000",
	}
}

func (e *orderEnv) productStock(t *testing.T, id string) int {
	t.Helper()
	var product models.Product
	require.NoError(t, e.db.First(&product, "id = ?", id).Error)
	return product.StockQuantity
}

func (e *orderEnv) variantStock(t *testing.T, id string) int {
	t.Helper()
	var variant models.ProductVariant
	require.NoError(t, e.db.First(&variant, "id = ?", id).Error)
	return variant.StockQuantity
}

func (e *orderEnv) userCoins(t *testing.T, id string) int64 {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.First(&user, "id = ?", id).Error)
	return user.Coins
}

func TestOrderService_CreateOrder_MonetaryBreakdown(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 250, 10)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 2}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)

	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, order.DiscountAmount.Equal(decimal.Zero))
	assert.True(t, order.GrossAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, order.ShippingAmount.Equal(decimal.NewFromInt(50)))
	assert.True(t, order.NetAmount.Equal(decimal.NewFromInt(550)))
	assert.Equal(t, models.OrderStatusPlaced, order.Status)
	assert.Equal(t, models.PaymentStatusNotPaid, order.PaymentStatus)
	assert.Contains(t, order.OrderNumber, "ORD-")

	// net == (total - discount) + shipping and total == sum of line totals.
	lineSum := decimal.Zero
	for _, item := range order.Items {
		lineSum = lineSum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, order.TotalAmount.Equal(lineSum))
	assert.True(t, order.NetAmount.Equal(order.TotalAmount.Sub(order.DiscountAmount).Add(order.ShippingAmount)))

	// The whole aggregate is persisted and stock is decremented.
	persisted, err := env.service.GetOrder(user.ID, order.ID)
	require.NoError(t, err)
	require.Len(t, persisted.Items, 1)
	assert.Equal(t, "Product prod-1", persisted.Items[0].ProductName)
	require.NotNil(t, persisted.ShippingAddress)
	assert.Equal(t, "Pune", persisted.ShippingAddress.City)
	assert.Equal(t, 8, env.productStock(t, "prod-1"))

	env.mq.AssertCalled(t, "Publish", "order", "order.created", mock.Anything)
}

func TestOrderService_CreateOrder_NonCashMarkedPaid(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 5)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:               user.ID,
		Items:                []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:              inlineAddress(),
		PaymentType:          "card",
		PaymentTransactionID: "txn-42",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, "txn-42", order.PaymentTransactionID)
}

func TestOrderService_CreateOrder_CoinRedemption(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 80)
	env.seedProduct(t, "prod-1", 500, 5)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		UseCoins:    true,
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(80), order.CoinsRedeemed)
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(80)))
	assert.True(t, order.GrossAmount.Equal(decimal.NewFromInt(420)))
	assert.True(t, order.NetAmount.Equal(decimal.NewFromInt(470)))
	assert.Equal(t, int64(0), env.userCoins(t, user.ID))
}

func TestOrderService_CreateOrder_InsufficientCoins(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 30)
	env.seedProduct(t, "prod-1", 500, 5)

	_, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		UseCoins:    true,
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrInsufficientCoins)
	assert.Equal(t, int64(30), env.userCoins(t, user.ID))
	assert.Equal(t, 5, env.productStock(t, "prod-1"))
}

func TestOrderService_CreateOrder_CouponAndCoins(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 80)
	env.seedProduct(t, "prod-1", 1000, 5)
	require.NoError(t, env.db.Create(welcome10()).Error)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		CouponCode:  "WELCOME10",
		UseCoins:    true,
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)

	// Coupon 100 (10% of 1000) plus the full 80-coin balance.
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(180)))
	assert.True(t, order.GrossAmount.Equal(decimal.NewFromInt(820)))
	assert.True(t, order.NetAmount.Equal(decimal.NewFromInt(870)))
	assert.Equal(t, int64(0), env.userCoins(t, user.ID))

	// Coupon usage is accounted exactly once, inside the commit.
	var offer models.Offer
	require.NoError(t, env.db.First(&offer, "code = ?", "WELCOME10").Error)
	assert.Equal(t, 1, offer.UsedCount)
}

func TestOrderService_CreateOrder_CoinClampAfterCoupon(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 200)
	env.seedProduct(t, "prod-1", 500, 5)
	require.NoError(t, env.db.Create(&models.Offer{
		ID:            "offer-flat",
		Code:          "FLAT450",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(450),
		StartDate:     welcome10().StartDate,
		EndDate:       welcome10().EndDate,
		Active:        true,
	}).Error)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		CouponCode:  "FLAT450",
		UseCoins:    true,
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)

	// Coins clamp against the post-coupon remainder (500-450=50), not the
	// raw subtotal, so the combined discount never exceeds the total.
	assert.Equal(t, int64(50), order.CoinsRedeemed)
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, order.GrossAmount.Equal(decimal.Zero))
	assert.True(t, order.NetAmount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(150), env.userCoins(t, user.ID))
}

func TestOrderService_CreateOrder_FailingCouponAbortsOrder(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 5)

	_, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		CouponCode:  "NOPE",
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrCouponInvalid)

	var count int64
	env.db.Model(&models.Order{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestOrderService_CreateOrder_StockDepletion(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 100)
	env.seedVariant(t, "var-1", "prod-1", 120, 5)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", VariantID: "var-1", Quantity: 5}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, env.variantStock(t, "var-1"))
	// Variant-level stock is authoritative; the product counter is untouched.
	assert.Equal(t, 100, env.productStock(t, "prod-1"))
	// The variant's price was captured, not the product's.
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(600)))

	_, err = env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", VariantID: "var-1", Quantity: 1}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.Equal(t, 0, env.variantStock(t, "var-1"))
}

func TestOrderService_CreateOrder_Atomicity(t *testing.T) {
	// The ledger passes the advisory pre-check but loses the race at
	// commit time; every earlier write in the transaction must roll back.
	env := setupOrderEnv(t, nil)
	failing := &failingStockLedger{inner: repositories.NewGORMStockLedger(env.db)}
	envFailing := setupOrderEnvWithLedger(t, env, failing)

	user := env.seedUser(t, 80)
	env.seedProduct(t, "prod-1", 1000, 5)
	require.NoError(t, env.db.Create(welcome10()).Error)

	_, err := envFailing.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		CouponCode:  "WELCOME10",
		UseCoins:    true,
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrInsufficientStock)

	var orders, items int64
	env.db.Model(&models.Order{}).Count(&orders)
	env.db.Model(&models.OrderItem{}).Count(&items)
	assert.Equal(t, int64(0), orders)
	assert.Equal(t, int64(0), items)
	assert.Equal(t, int64(80), env.userCoins(t, user.ID))
	assert.Equal(t, 5, env.productStock(t, "prod-1"))

	var offer models.Offer
	require.NoError(t, env.db.First(&offer, "code = ?", "WELCOME10").Error)
	assert.Equal(t, 0, offer.UsedCount)
}

// setupOrderEnvWithLedger rebuilds the orchestrator of env with a substitute
// stock ledger, keeping every other collaborator on the same database.
func setupOrderEnvWithLedger(t *testing.T, env *orderEnv, ledger repositories.StockLedger) *services.OrderService {
	t.Helper()
	mq := new(MockEventPublisher)
	mq.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return services.NewOrderService(
		repositories.NewGormTxRunner(env.db),
		repositories.NewGORMOrderRepository(env.db),
		repositories.NewGORMCatalogRepository(env.db),
		ledger,
		repositories.NewGORMUserRepository(env.db),
		repositories.NewGORMOfferRepository(env.db),
		services.NewCouponService(repositories.NewGORMOfferRepository(env.db)),
		services.NewAddressService(repositories.NewGORMAddressRepository(env.db)),
		mq,
		decimal.NewFromInt(50),
	)
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 5)

	_, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      "ghost",
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrValidation)

	// Exactly one of saved address and inline address is required.
	_, err = env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		AddressID:   "addr-1",
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestOrderService_CreateOrder_InactiveProduct(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	product := env.seedProduct(t, "prod-1", 100, 5)
	require.NoError(t, env.db.Model(product).Update("active", false).Error)

	_, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	assert.ErrorIs(t, err, services.ErrInactive)
}

func TestOrderService_CreateOrder_SavedAddress(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 5)
	require.NoError(t, env.db.Create(&models.Address{
		ID: "addr-1", UserID: user.ID, Name: "Buyer One", Line1: "12 Market Road",
		City: "Pune", State: "Maharashtra", PostalCode: "411001",
		Country: "India", Phone: "+91-9000000000",
	}).Error)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		AddressID:   "addr-1",
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)
	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "12 Market Road", order.ShippingAddress.Line1)

	// The snapshot is decoupled from the address book: editing the saved
	// address later must not rewrite the order.
	require.NoError(t, env.db.Model(&models.Address{}).Where("id = ?", "addr-1").
		Update("line1", "99 New Street").Error)
	persisted, err := env.service.GetOrder(user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 Market Road", persisted.ShippingAddress.Line1)
}

func TestOrderService_CancelOrder_RestoresStock(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 10)
	env.seedProduct(t, "prod-2", 200, 10)
	env.seedVariant(t, "var-2", "prod-2", 220, 10)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID: user.ID,
		Items: []services.OrderLineInput{
			{ProductID: "prod-1", Quantity: 3},
			{ProductID: "prod-2", VariantID: "var-2", Quantity: 2},
		},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, env.productStock(t, "prod-1"))
	assert.Equal(t, 8, env.variantStock(t, "var-2"))

	require.NoError(t, env.service.CancelOrder(user.ID, order.ID))

	cancelled, err := env.service.GetOrder(user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, env.productStock(t, "prod-1"))
	assert.Equal(t, 10, env.variantStock(t, "var-2"))

	// Re-cancelling is rejected and must not restock a second time.
	err = env.service.CancelOrder(user.ID, order.ID)
	assert.ErrorIs(t, err, services.ErrInvalidStateTransition)
	assert.Equal(t, 10, env.productStock(t, "prod-1"))
	assert.Equal(t, 10, env.variantStock(t, "var-2"))

	env.mq.AssertCalled(t, "Publish", "order", "order.cancelled", mock.Anything)
}

func TestOrderService_CancelOrder_DeliveredGuard(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 10)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 2}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)
	require.NoError(t, env.service.UpdateOrderStatus(order.ID, models.OrderStatusDelivered))

	err = env.service.CancelOrder(user.ID, order.ID)
	assert.ErrorIs(t, err, services.ErrInvalidStateTransition)
	assert.Equal(t, 8, env.productStock(t, "prod-1"))
}

func TestOrderService_CancelOrder_ScopedToOwner(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 10)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)

	err = env.service.CancelOrder("someone-else", order.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestOrderService_AdminTransitions(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 10)

	order, err := env.service.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, env.service.UpdateOrderStatus(order.ID, "teleported"), services.ErrValidation)
	assert.ErrorIs(t, env.service.UpdateOrderStatus("ghost", models.OrderStatusShipping), services.ErrNotFound)
	require.NoError(t, env.service.UpdateOrderStatus(order.ID, models.OrderStatusProcessing))

	assert.ErrorIs(t, env.service.UpdatePaymentStatus(order.ID, "maybe", ""), services.ErrValidation)
	require.NoError(t, env.service.UpdatePaymentStatus(order.ID, models.PaymentStatusPaid, "txn-99"))

	updated, err := env.service.GetOrder(user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, "txn-99", updated.PaymentTransactionID)
}

func TestOrderService_PublishFailureDoesNotFailOrder(t *testing.T) {
	env := setupOrderEnv(t, nil)
	user := env.seedUser(t, 0)
	env.seedProduct(t, "prod-1", 100, 10)

	broken := new(MockEventPublisher)
	broken.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("broker down")).Maybe()

	withBrokenMQ := services.NewOrderService(
		repositories.NewGormTxRunner(env.db),
		repositories.NewGORMOrderRepository(env.db),
		repositories.NewGORMCatalogRepository(env.db),
		repositories.NewGORMStockLedger(env.db),
		repositories.NewGORMUserRepository(env.db),
		repositories.NewGORMOfferRepository(env.db),
		services.NewCouponService(repositories.NewGORMOfferRepository(env.db)),
		services.NewAddressService(repositories.NewGORMAddressRepository(env.db)),
		broken,
		decimal.NewFromInt(50),
	)

	order, err := withBrokenMQ.CreateOrder(services.CreateOrderInput{
		UserID:      user.ID,
		Items:       []services.OrderLineInput{{ProductID: "prod-1", Quantity: 1}},
		Address:     inlineAddress(),
		PaymentType: models.PaymentTypeCOD,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

// staleOrderReads serves a pinned snapshot from GetByIDForUser while writes
// go through to the wrapped repository, modeling a canceller whose pre-commit
// read raced with another cancellation.
type staleOrderReads struct {
	repositories.OrderRepository
	snapshot models.Order
}

func (r *staleOrderReads) GetByIDForUser(id, userID string) (*models.Order, error) {
	if r.snapshot.ID == id && r.snapshot.UserID == userID {
		order := r.snapshot
		return &order, nil
	}
	return r.OrderRepository.GetByIDForUser(id, userID)
}

func TestOrderService_CancelOrder_InMemory(t *testing.T) {
	orders := repositories.NewMockOrderRepository()
	ledger := repositories.NewMockStockLedger()
	ledger.Set("prod-1", 10)

	order := models.Order{
		UserID: "user-1",
		Status: models.OrderStatusPlaced,
		Items:  []models.OrderItem{{ProductID: "prod-1", Quantity: 3}},
	}
	require.NoError(t, orders.Create(&order))

	service := services.NewOrderService(
		repositories.NoopTxRunner{}, orders, nil, ledger, nil, nil,
		nil, nil, nil, decimal.NewFromInt(50),
	)

	require.NoError(t, service.CancelOrder("user-1", order.ID))

	cancelled, err := orders.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	available, err := ledger.Available(repositories.ItemRef{ProductID: "prod-1"})
	require.NoError(t, err)
	assert.Equal(t, 13, available)
}

func TestOrderService_CancelOrder_ConcurrentCancelDoesNotDoubleRestock(t *testing.T) {
	orders := repositories.NewMockOrderRepository()
	ledger := repositories.NewMockStockLedger()
	ledger.Set("prod-1", 10)

	order := models.Order{
		UserID: "user-1",
		Status: models.OrderStatusPlaced,
		Items:  []models.OrderItem{{ProductID: "prod-1", Quantity: 3}},
	}
	require.NoError(t, orders.Create(&order))

	// Both cancellations observe the order as still placed.
	stale := &staleOrderReads{OrderRepository: orders, snapshot: order}
	service := services.NewOrderService(
		repositories.NoopTxRunner{}, stale, nil, ledger, nil, nil,
		nil, nil, nil, decimal.NewFromInt(50),
	)

	require.NoError(t, service.CancelOrder("user-1", order.ID))

	// The second one passed the advisory guard on the stale read; the
	// conditional transition must still reject it before any restock.
	err := service.CancelOrder("user-1", order.ID)
	assert.ErrorIs(t, err, services.ErrInvalidStateTransition)

	available, err := ledger.Available(repositories.ItemRef{ProductID: "prod-1"})
	require.NoError(t, err)
	assert.Equal(t, 13, available)
}
