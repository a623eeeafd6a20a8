package cashier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 409
)

type Service struct {
	DB *gorm.DB
}

type TransactionRequest struct {
	Type          string  `json:"type"`
	Category      string  `json:"category"`
	Value         float64 `json:"value"`
	Description   string  `json:"description"`
	PaymentMethod string  `json:"payment_method"`
	Note          string  `json:"note"`
	OrderID       *uint   `json:"order_id"`
}

type CloseSummary struct {
	RegisterID   uint    `json:"register_id"`
	ClosedAt     string  `json:"closed_at"`
	FinalBalance float64 `json:"final_balance"`
	TotalIn      float64 `json:"total_in"`
	TotalOut     float64 `json:"total_out"`
	DayBalance   float64 `json:"day_balance"`
	Transactions int64   `json:"transactions"`
}

func (s *Service) openRegister(tx *gorm.DB, storeID uint) (*models.CashRegister, error) {
	var register models.CashRegister
	err := tx.Where("store_id = ? AND status = ?", storeID, models.RegisterStatusOpen).First(&register).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &register, nil
}

// Open starts a register session for the store. Only one session may be
// open per store at a time.
func (s *Service) Open(ctx context.Context, storeID uint, initialBalance float64) (*models.CashRegister, error) {
	var register models.CashRegister

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.openRegister(tx, storeID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: já existe um caixa aberto para esta loja", ErrConflict)
		}

		register = models.CashRegister{
			StoreID:        storeID,
			Status:         models.RegisterStatusOpen,
			OpeningBalance: initialBalance,
			CurrentBalance: initialBalance,
			OpenedAt:       time.Now(),
		}
		return tx.Create(&register).Error
	})

	if txErr != nil {
		return nil, txErr
	}
	return &register, nil
}

// Close ends the store's open session and reports the day's totals, summed
// from the transaction log rather than the cached balance.
func (s *Service) Close(ctx context.Context, storeID uint) (*CloseSummary, error) {
	var summary CloseSummary

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		register, err := s.openRegister(tx, storeID)
		if err != nil {
			return err
		}
		if register == nil {
			return fmt.Errorf("%w: caixa aberto não encontrado para esta loja", ErrNotFound)
		}

		if err := register.Close(); err != nil {
			return fmt.Errorf("%w: %s", ErrConflict, err)
		}
		if err := tx.Save(register).Error; err != nil {
			return err
		}

		dayStart, dayEnd := dayRange(time.Now())
		totalIn, totalOut, count, err := sums(tx, register.ID, dayStart, dayEnd)
		if err != nil {
			return err
		}

		summary = CloseSummary{
			RegisterID:   register.ID,
			ClosedAt:     register.ClosedAt.Format("02/01/2006 15:04"),
			FinalBalance: register.CurrentBalance,
			TotalIn:      totalIn,
			TotalOut:     totalOut,
			DayBalance:   totalIn - totalOut,
			Transactions: count,
		}
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return &summary, nil
}

func (s *Service) Reopen(ctx context.Context, registerID uint) (*models.CashRegister, error) {
	var register models.CashRegister

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&register, registerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: caixa %d", ErrNotFound, registerID)
			}
			return err
		}
		if err := register.Reopen(); err != nil {
			return fmt.Errorf("%w: %s", ErrConflict, err)
		}
		return tx.Save(&register).Error
	})

	if txErr != nil {
		return nil, txErr
	}
	return &register, nil
}

// AddTransaction appends one Entrada/Saida to the store's open register and
// moves the running balance.
func (s *Service) AddTransaction(ctx context.Context, storeID uint, req TransactionRequest) (*models.CashTransaction, float64, error) {
	if req.Type != models.TransactionIn && req.Type != models.TransactionOut {
		return nil, 0, fmt.Errorf("%w: tipo deve ser Entrada ou Saida", ErrValidation)
	}
	if req.Value <= 0 {
		return nil, 0, fmt.Errorf("%w: valor deve ser maior que zero", ErrValidation)
	}

	var (
		trans   models.CashTransaction
		balance float64
	)

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		register, err := s.openRegister(tx, storeID)
		if err != nil {
			return err
		}
		if register == nil {
			return fmt.Errorf("%w: não há caixa aberto para esta loja", ErrConflict)
		}

		trans = models.CashTransaction{
			CashRegisterID: register.ID,
			Type:           req.Type,
			Category:       req.Category,
			Value:          req.Value,
			Description:    req.Description,
			PaymentMethod:  req.PaymentMethod,
			Note:           req.Note,
			OrderID:        req.OrderID,
			OccurredAt:     time.Now(),
		}
		if err := register.Apply(&trans); err != nil {
			return fmt.Errorf("%w: %s", ErrConflict, err)
		}
		if err := tx.Create(&trans).Error; err != nil {
			return err
		}
		if err := tx.Save(register).Error; err != nil {
			return err
		}

		balance = register.CurrentBalance
		return nil
	})

	if txErr != nil {
		return nil, 0, txErr
	}
	return &trans, balance, nil
}

// PeriodBalance derives Entrada minus Saida from the transaction log within
// the range. It never reads the cached running balance.
func (s *Service) PeriodBalance(ctx context.Context, registerID uint, from, to time.Time) (float64, error) {
	totalIn, totalOut, _, err := sums(s.DB.WithContext(ctx), registerID, from, to)
	if err != nil {
		return 0, err
	}
	return totalIn - totalOut, nil
}

func (s *Service) DailyBalance(ctx context.Context, registerID uint, day time.Time) (float64, error) {
	start, end := dayRange(day)
	return s.PeriodBalance(ctx, registerID, start, end)
}

// dayRange brackets the calendar day in the moment's own zone. Truncate
// would cut on UTC boundaries and shift the window in local deployments.
func dayRange(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.Add(24 * time.Hour)
}

func sums(tx *gorm.DB, registerID uint, from, to time.Time) (totalIn, totalOut float64, count int64, err error) {
	var rows []models.CashTransaction
	err = tx.Where("cash_register_id = ? AND occurred_at >= ? AND occurred_at < ?", registerID, from, to).
		Find(&rows).Error
	if err != nil {
		return 0, 0, 0, err
	}

	for _, t := range rows {
		switch t.Type {
		case models.TransactionIn:
			totalIn += t.Value
		case models.TransactionOut:
			totalOut += t.Value
		}
	}
	return totalIn, totalOut, int64(len(rows)), nil
}

// ByStore returns the latest register of the store plus its last
// transactions, newest first.
func (s *Service) ByStore(ctx context.Context, storeID uint, lastN int) (*models.CashRegister, []models.CashTransaction, error) {
	var register models.CashRegister
	err := s.DB.WithContext(ctx).Where("store_id = ?", storeID).
		Order("opened_at DESC").First(&register).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: caixa da loja não encontrado", ErrNotFound)
		}
		return nil, nil, err
	}

	if lastN <= 0 {
		lastN = 10
	}
	var trans []models.CashTransaction
	err = s.DB.WithContext(ctx).Where("cash_register_id = ?", register.ID).
		Order("occurred_at DESC").Limit(lastN).Find(&trans).Error
	if err != nil {
		return nil, nil, err
	}

	return &register, trans, nil
}
