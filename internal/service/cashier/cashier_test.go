package cashier

import (
	"context"
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

func TestOpenRejectsSecondSession(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}

	register, err := svc.Open(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Equal(t, models.RegisterStatusOpen, register.Status)
	require.Equal(t, 100.0, register.CurrentBalance)

	_, err = svc.Open(context.Background(), 1, 50)
	require.ErrorIs(t, err, ErrConflict)

	// another store is fine
	_, err = svc.Open(context.Background(), 2, 0)
	require.NoError(t, err)
}

func TestAddTransactionMovesBalance(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}

	_, err := svc.Open(context.Background(), 1, 100)
	require.NoError(t, err)

	_, balance, err := svc.AddTransaction(context.Background(), 1, TransactionRequest{
		Type: models.TransactionIn, Category: "Venda", Value: 250, PaymentMethod: "Pix",
	})
	require.NoError(t, err)
	require.Equal(t, 350.0, balance)

	trans, balance, err := svc.AddTransaction(context.Background(), 1, TransactionRequest{
		Type: models.TransactionOut, Category: "Despesa", Value: 70, Description: "Material de limpeza",
	})
	require.NoError(t, err)
	require.Equal(t, 280.0, balance)
	require.Equal(t, models.TransactionOut, trans.Type)
}

func TestAddTransactionValidation(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}

	_, err := svc.Open(context.Background(), 1, 0)
	require.NoError(t, err)

	_, _, err = svc.AddTransaction(context.Background(), 1, TransactionRequest{Type: "Transferencia", Value: 10})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.AddTransaction(context.Background(), 1, TransactionRequest{Type: models.TransactionIn, Value: 0})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.AddTransaction(context.Background(), 99, TransactionRequest{Type: models.TransactionIn, Value: 10})
	require.ErrorIs(t, err, ErrConflict)
}

func TestCloseReportsDayTotals(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}

	_, err := svc.Open(context.Background(), 1, 100)
	require.NoError(t, err)

	for _, req := range []TransactionRequest{
		{Type: models.TransactionIn, Value: 200},
		{Type: models.TransactionIn, Value: 50},
		{Type: models.TransactionOut, Value: 80},
	} {
		_, _, err := svc.AddTransaction(context.Background(), 1, req)
		require.NoError(t, err)
	}

	summary, err := svc.Close(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 270.0, summary.FinalBalance)
	require.Equal(t, 250.0, summary.TotalIn)
	require.Equal(t, 80.0, summary.TotalOut)
	require.Equal(t, 170.0, summary.DayBalance)
	require.Equal(t, int64(3), summary.Transactions)

	_, err = svc.Close(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.AddTransaction(context.Background(), 1, TransactionRequest{Type: models.TransactionIn, Value: 10})
	require.ErrorIs(t, err, ErrConflict)
}

func TestReopen(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}

	register, err := svc.Open(context.Background(), 1, 100)
	require.NoError(t, err)

	_, err = svc.Reopen(context.Background(), register.ID)
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Close(context.Background(), 1)
	require.NoError(t, err)

	reopened, err := svc.Reopen(context.Background(), register.ID)
	require.NoError(t, err)
	require.True(t, reopened.IsOpen())
	require.Nil(t, reopened.ClosedAt)

	_, err = svc.Reopen(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPeriodBalanceDerivesFromLog(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}

	register, err := svc.Open(context.Background(), 1, 1000)
	require.NoError(t, err)

	yesterday := time.Now().Add(-24 * time.Hour)
	require.NoError(t, db.Create(&models.CashTransaction{
		CashRegisterID: register.ID, Type: models.TransactionIn, Value: 500, OccurredAt: yesterday,
	}).Error)

	_, _, err = svc.AddTransaction(context.Background(), 1, TransactionRequest{Type: models.TransactionIn, Value: 300})
	require.NoError(t, err)
	_, _, err = svc.AddTransaction(context.Background(), 1, TransactionRequest{Type: models.TransactionOut, Value: 100})
	require.NoError(t, err)

	// today only: the opening balance and yesterday's entry stay out
	today, err := svc.DailyBalance(context.Background(), register.ID, time.Now())
	require.NoError(t, err)
	require.Equal(t, 200.0, today)

	full, err := svc.PeriodBalance(context.Background(), register.ID, yesterday.Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 700.0, full)
}

func TestDayRangeUsesTheMomentsZone(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	noon := time.Date(2026, 8, 29, 12, 0, 0, 0, brt)

	start, end := dayRange(noon)
	require.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, brt), start)
	require.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, brt), end)

	// 23:00 local is already the next day in UTC; the window must still
	// cover it
	late := time.Date(2026, 8, 29, 23, 0, 0, 0, brt)
	start, end = dayRange(late)
	require.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, brt), start)
	require.True(t, late.After(start) && late.Before(end))
}

func TestByStore(t *testing.T) {
	db := testDB(t)
	svc := &Service{DB: db}

	_, err := svc.Open(context.Background(), 1, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err := svc.AddTransaction(context.Background(), 1, TransactionRequest{Type: models.TransactionIn, Value: float64(i + 1)})
		require.NoError(t, err)
	}

	register, trans, err := svc.ByStore(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, 6.0, register.CurrentBalance)
	require.Len(t, trans, 2)

	_, _, err = svc.ByStore(context.Background(), 42, 0)
	require.ErrorIs(t, err, ErrNotFound)
}
