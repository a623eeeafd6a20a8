package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInventoryAddStock(t *testing.T) {
	inv := Inventory{}

	require.NoError(t, inv.AddStock(10))
	require.Equal(t, 10, inv.QuantityAvailable)
	require.NotNil(t, inv.LastMovement)

	require.ErrorIs(t, inv.AddStock(0), ErrInvalidQuantity)
	require.ErrorIs(t, inv.AddStock(-3), ErrInvalidQuantity)
	require.Equal(t, 10, inv.QuantityAvailable)
}

func TestInventoryRemoveKeepsReserveCovered(t *testing.T) {
	inv := Inventory{QuantityAvailable: 10, QuantityReserved: 4}

	// only 6 units are free; taking 7 would leave the reserve uncovered
	require.ErrorIs(t, inv.RemoveStock(7), ErrInsufficientStock)
	require.Equal(t, 10, inv.QuantityAvailable)
	require.Equal(t, 4, inv.QuantityReserved)

	require.NoError(t, inv.RemoveStock(6))
	require.Equal(t, 4, inv.QuantityAvailable)
	require.Equal(t, 4, inv.QuantityReserved)
	require.True(t, inv.QuantityReserved <= inv.QuantityAvailable)
}

func TestInventoryReserveFailureLeavesStateUnchanged(t *testing.T) {
	inv := Inventory{QuantityAvailable: 5, QuantityReserved: 3}

	require.ErrorIs(t, inv.Reserve(3), ErrInsufficientStock)
	require.Equal(t, 5, inv.QuantityAvailable)
	require.Equal(t, 3, inv.QuantityReserved)
	require.Nil(t, inv.LastMovement)

	require.NoError(t, inv.Reserve(2))
	require.Equal(t, 5, inv.QuantityReserved)
	require.Equal(t, 0, inv.RealStock())
}

func TestInventoryReleaseReservation(t *testing.T) {
	inv := Inventory{QuantityAvailable: 5, QuantityReserved: 2}

	require.ErrorIs(t, inv.ReleaseReservation(3), ErrInsufficientReserve)
	require.NoError(t, inv.ReleaseReservation(2))
	require.Equal(t, 0, inv.QuantityReserved)
	require.Equal(t, 5, inv.RealStock())
}

func TestInventoryStatusClassification(t *testing.T) {
	cases := []struct {
		name      string
		available int
		reserved  int
		minimum   int
		reorder   int
		want      string
	}{
		{"critical at minimum", 3, 0, 3, 5, StockStatusCritical},
		{"critical below minimum", 2, 0, 3, 5, StockStatusCritical},
		{"warning at reorder point", 5, 0, 3, 5, StockStatusWarning},
		{"normal above reorder", 6, 0, 3, 5, StockStatusNormal},
		{"reserved counts against real stock", 8, 5, 3, 5, StockStatusCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := Inventory{
				QuantityAvailable: tc.available,
				QuantityReserved:  tc.reserved,
				MinimumStock:      tc.minimum,
				ReorderPoint:      tc.reorder,
			}
			require.Equal(t, tc.want, inv.Status())
		})
	}
}

func TestCashRegisterCloseAndReopen(t *testing.T) {
	register := CashRegister{Status: RegisterStatusOpen, OpenedAt: time.Now()}

	require.NoError(t, register.Close())
	require.Equal(t, RegisterStatusClosed, register.Status)
	require.NotNil(t, register.ClosedAt)

	require.ErrorIs(t, register.Close(), ErrRegisterClosed)

	require.NoError(t, register.Reopen())
	require.True(t, register.IsOpen())
	require.Nil(t, register.ClosedAt)

	require.ErrorIs(t, register.Reopen(), ErrRegisterOpen)
}

func TestCashRegisterApply(t *testing.T) {
	register := CashRegister{Status: RegisterStatusOpen, CurrentBalance: 100}

	require.NoError(t, register.Apply(&CashTransaction{Type: TransactionIn, Value: 50}))
	require.Equal(t, 150.0, register.CurrentBalance)

	require.NoError(t, register.Apply(&CashTransaction{Type: TransactionOut, Value: 30}))
	require.Equal(t, 120.0, register.CurrentBalance)

	require.NoError(t, register.Close())
	err := register.Apply(&CashTransaction{Type: TransactionIn, Value: 10})
	require.ErrorIs(t, err, ErrRegisterNotOpen)
	require.Equal(t, 120.0, register.CurrentBalance)
}

func TestCartItemSubtotalAndKind(t *testing.T) {
	physicalID := uint(7)
	item := CartItem{PhysicalProductID: &physicalID, Quantity: 3, UnitPrice: 19.90}

	require.InDelta(t, 59.70, item.Subtotal(), 0.001)
	require.Equal(t, "fisico", item.ProductKind())

	digitalID := uint(2)
	item = CartItem{DigitalProductID: &digitalID, Quantity: 1, UnitPrice: 9.90}
	require.Equal(t, "digital", item.ProductKind())

	empty := CartItem{}
	require.Equal(t, "desconhecido", empty.ProductKind())
}

func TestOrderItemSubtotalWithDiscount(t *testing.T) {
	item := OrderItem{Quantity: 2, UnitPrice: 100, Discount: 10}
	require.Equal(t, 180.0, item.Subtotal())
}

func TestPhysicalProductDimensions(t *testing.T) {
	p := PhysicalProduct{Height: 10, Width: 20, Depth: 5}
	require.Equal(t, "10.0 x 20.0 x 5.0 cm", p.Dimensions())
	require.Equal(t, 1000.0, p.Volume())
	require.False(t, p.CanShip())

	p.Weight = 1.5
	require.True(t, p.CanShip())

	require.Equal(t, "dimensões não informadas", (&PhysicalProduct{}).Dimensions())
}

func TestDigitalProductDownloadRules(t *testing.T) {
	p := DigitalProduct{DownloadURL: "https://cdn.example.com/ebook.pdf", DownloadLimit: 3}

	require.True(t, p.LinkValid())
	require.True(t, p.CanDownload(2))
	require.False(t, p.CanDownload(3))

	past := time.Now().Add(-time.Hour)
	p.ExpiresAt = &past
	require.False(t, p.LinkValid())
	require.False(t, p.CanDownload(0))

	future := time.Now().Add(time.Hour)
	p.ExpiresAt = &future
	link := p.DownloadLink(42)
	require.Contains(t, link, "https://cdn.example.com/ebook.pdf?token=")
	require.Contains(t, link, "user=42")
}
