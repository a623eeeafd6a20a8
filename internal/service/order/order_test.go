package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedClient(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	client := models.User{Name: "Maria", Email: "maria@example.com", PasswordHash: "x", Role: "cliente", Active: true}
	require.NoError(t, db.Create(&client).Error)
	return client
}

func seedPhysical(t *testing.T, db *gorm.DB, price, weight float64, stock int) models.PhysicalProduct {
	t.Helper()
	product := models.PhysicalProduct{
		ProductBase: models.ProductBase{
			Name: "Cafeteira", Price: price, SKU: fmt.Sprintf("FIS-%d", time.Now().UnixNano()),
			StoreID: 1, Active: true, CreatedAt: time.Now(),
		},
		Weight: weight,
	}
	require.NoError(t, db.Create(&product).Error)
	inv := models.Inventory{PhysicalProductID: product.ID, QuantityAvailable: stock}
	require.NoError(t, db.Create(&inv).Error)
	return product
}

func seedCart(t *testing.T, db *gorm.DB, clientID uint, items ...models.CartItem) models.Cart {
	t.Helper()
	cart := models.Cart{ClientID: clientID, CreatedAt: time.Now()}
	require.NoError(t, db.Create(&cart).Error)
	for i := range items {
		items[i].CartID = cart.ID
		items[i].AddedAt = time.Now()
		require.NoError(t, db.Create(&items[i]).Error)
	}
	return cart
}

func TestFreight(t *testing.T) {
	cases := []struct {
		weight float64
		want   float64
	}{
		{0, 15.00},
		{0.5, 15.00},
		{1, 15.00},
		{1.01, 25.00},
		{5, 25.00},
		{7.5, 35.00},
		{10, 35.00},
		{10.01, 50.00},
		{42, 50.00},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Freight(tc.weight), "weight %.2f", tc.weight)
	}
}

func TestNextOrderNumberSequence(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	prefix := "PED" + now.Format("20060102")

	first, err := nextOrderNumber(db, now)
	require.NoError(t, err)
	require.Equal(t, prefix+"0001", first)

	require.NoError(t, db.Create(&models.Order{Number: first, ClientID: 1, StoreID: 1, Subtotal: 1, Total: 1, CreatedAt: now}).Error)

	second, err := nextOrderNumber(db, now)
	require.NoError(t, err)
	require.Equal(t, prefix+"0002", second)
}

func TestNextOrderNumberWidensPastFourDigits(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	prefix := "PED" + now.Format("20060102")

	for i, number := range []string{prefix + "9999", prefix + "10000"} {
		require.NoError(t, db.Create(&models.Order{
			Number: number, ClientID: uint(i + 1), StoreID: 1, Subtotal: 1, Total: 1, CreatedAt: now,
		}).Error)
	}

	// "9999" sorts above "10000" as a string; the scan must still pick
	// the numeric maximum
	next, err := nextOrderNumber(db, now)
	require.NoError(t, err)
	require.Equal(t, prefix+"10001", next)
}

func TestPlaceEmptyCartFails(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	client := seedClient(t, db)
	seedCart(t, db, client.ID)

	_, err := svc.Place(context.Background(), PlaceRequest{ClientID: client.ID})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorContains(t, err, "carrinho vazio")

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPlacePhysicalOrder(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	client := seedClient(t, db)
	product := seedPhysical(t, db, 100.00, 3.0, 10)

	register := models.CashRegister{StoreID: 1, Status: models.RegisterStatusOpen, OpeningBalance: 50, CurrentBalance: 50, OpenedAt: time.Now()}
	require.NoError(t, db.Create(&register).Error)

	cart := seedCart(t, db, client.ID, models.CartItem{
		PhysicalProductID: &product.ID, Quantity: 2, UnitPrice: product.Price,
	})

	order, err := svc.Place(context.Background(), PlaceRequest{ClientID: client.ID, DeliveryAddressID: 1, PaymentMethod: "Pix"})
	require.NoError(t, err)

	require.Equal(t, 200.00, order.Subtotal)
	require.Equal(t, 25.00, order.Freight)
	require.Equal(t, 225.00, order.Total)
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	require.Equal(t, product.Name, order.Items[0].ProductName)

	require.NotNil(t, order.Payment)
	require.Equal(t, models.PaymentStatusPending, order.Payment.Status)
	require.NotEmpty(t, order.Payment.Reference)
	require.Equal(t, 225.00, order.Payment.Value)

	require.NotNil(t, order.Shipment)
	require.Equal(t, models.ShipmentStatusWaiting, order.Shipment.Status)
	require.Equal(t, 25.00, order.Shipment.Value)

	var inv models.Inventory
	require.NoError(t, db.Where("physical_product_id = ?", product.ID).First(&inv).Error)
	require.Equal(t, 8, inv.QuantityAvailable)

	var itemCount int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&itemCount).Error)
	require.Zero(t, itemCount)

	require.NoError(t, db.First(&register, register.ID).Error)
	require.Equal(t, 275.00, register.CurrentBalance)

	var trans models.CashTransaction
	require.NoError(t, db.Where("cash_register_id = ?", register.ID).First(&trans).Error)
	require.Equal(t, models.TransactionIn, trans.Type)
	require.Equal(t, "Venda", trans.Category)
	require.Equal(t, 225.00, trans.Value)
	require.Equal(t, "Pedido "+order.Number, trans.Description)
}

func TestPlaceDigitalOnlyHasNoFreight(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	client := seedClient(t, db)

	product := models.DigitalProduct{
		ProductBase: models.ProductBase{
			Name: "Ebook Go", Price: 39.90, SKU: "DIG-1", StoreID: 2, Active: true, CreatedAt: time.Now(),
		},
		DownloadURL: "https://cdn.example.com/ebook.pdf",
	}
	require.NoError(t, db.Create(&product).Error)

	seedCart(t, db, client.ID, models.CartItem{
		DigitalProductID: &product.ID, Quantity: 1, UnitPrice: product.Price,
	})

	order, err := svc.Place(context.Background(), PlaceRequest{ClientID: client.ID, PaymentMethod: "Cartao"})
	require.NoError(t, err)

	require.Equal(t, 0.0, order.Freight)
	require.Equal(t, 39.90, order.Total)
	require.Nil(t, order.Shipment)
	require.Equal(t, uint(2), order.StoreID)
}

func TestPlaceWithoutStockFails(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	client := seedClient(t, db)
	product := seedPhysical(t, db, 10.00, 1.0, 1)

	seedCart(t, db, client.ID, models.CartItem{
		PhysicalProductID: &product.ID, Quantity: 2, UnitPrice: product.Price,
	})

	_, err := svc.Place(context.Background(), PlaceRequest{ClientID: client.ID})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorContains(t, err, "sem estoque suficiente")

	var inv models.Inventory
	require.NoError(t, db.Where("physical_product_id = ?", product.ID).First(&inv).Error)
	require.Equal(t, 1, inv.QuantityAvailable)
}

func placeOrder(t *testing.T, db *gorm.DB, svc *Service, qty int) (*models.Order, models.PhysicalProduct) {
	t.Helper()
	client := seedClient(t, db)
	product := seedPhysical(t, db, 50.00, 2.0, 10)
	seedCart(t, db, client.ID, models.CartItem{
		PhysicalProductID: &product.ID, Quantity: qty, UnitPrice: product.Price,
	})
	order, err := svc.Place(context.Background(), PlaceRequest{ClientID: client.ID, PaymentMethod: "Pix"})
	require.NoError(t, err)
	return order, product
}

func TestUpdateStatusFlow(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	order, _ := placeOrder(t, db, svc, 1)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusConfirmed, updated.Status)
	require.Equal(t, models.PaymentStatusApproved, updated.Payment.Status)
	require.Equal(t, models.ShipmentStatusPreparing, updated.Shipment.Status)

	updated, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusShipped, updated.Shipment.Status)
	require.Regexp(t, `^BR\d+$`, updated.Shipment.TrackingCode)

	updated, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusDelivered, updated.Shipment.Status)
}

func TestUpdateStatusRejectsSkippedTransition(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	order, _ := placeOrder(t, db, svc, 1)

	_, err := svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusDelivered)
	require.ErrorIs(t, err, ErrConflict)

	got, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, got.Status)
}

func TestCancelRestoresStockAndRefunds(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	order, product := placeOrder(t, db, svc, 3)

	var inv models.Inventory
	require.NoError(t, db.Where("physical_product_id = ?", product.ID).First(&inv).Error)
	require.Equal(t, 7, inv.QuantityAvailable)

	cancelled, err := svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, models.PaymentStatusRefunded, cancelled.Payment.Status)

	require.NoError(t, db.Where("physical_product_id = ?", product.ID).First(&inv).Error)
	require.Equal(t, 10, inv.QuantityAvailable)

	_, err = svc.Cancel(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrConflict)
}

func TestCancelDeliveredOrderFails(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	order, product := placeOrder(t, db, svc, 2)

	for _, status := range []string{models.OrderStatusConfirmed, models.OrderStatusShipped, models.OrderStatusDelivered} {
		_, err := svc.UpdateStatus(context.Background(), order.ID, status)
		require.NoError(t, err)
	}

	_, err := svc.Cancel(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorContains(t, err, "entregue")

	var inv models.Inventory
	require.NoError(t, db.Where("physical_product_id = ?", product.ID).First(&inv).Error)
	require.Equal(t, 8, inv.QuantityAvailable)

	got, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusDelivered, got.Status)
	require.Equal(t, models.PaymentStatusApproved, got.Payment.Status)
}

func TestPlaceWithoutOpenRegisterStillSucceeds(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}
	order, _ := placeOrder(t, db, svc, 1)

	require.NotZero(t, order.ID)
	var count int64
	require.NoError(t, db.Model(&models.CashTransaction{}).Count(&count).Error)
	require.Zero(t, count)
}
