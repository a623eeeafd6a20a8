package inventory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
)

const (
	AdjustIn      = "entrada"
	AdjustOut     = "saida"
	AdjustReserve = "reserva"
	AdjustRelease = "liberar"
)

type Service struct {
	DB *gorm.DB
}

// View is the read shape handlers return: raw counters plus the derived
// real stock and classification.
type View struct {
	ID                uint    `json:"id"`
	PhysicalProductID uint    `json:"physical_product_id"`
	ProductName       string  `json:"product_name"`
	QuantityAvailable int     `json:"quantity_available"`
	QuantityReserved  int     `json:"quantity_reserved"`
	RealStock         int     `json:"real_stock"`
	ReorderPoint      int     `json:"reorder_point"`
	MinimumStock      int     `json:"minimum_stock"`
	LastMovement      *string `json:"last_movement"`
	Status            string  `json:"status"`
	NeedsRestock      bool    `json:"needs_restock"`
}

func toView(e *models.Inventory) View {
	v := View{
		ID:                e.ID,
		PhysicalProductID: e.PhysicalProductID,
		QuantityAvailable: e.QuantityAvailable,
		QuantityReserved:  e.QuantityReserved,
		RealStock:         e.RealStock(),
		ReorderPoint:      e.ReorderPoint,
		MinimumStock:      e.MinimumStock,
		Status:            e.Status(),
		NeedsRestock:      e.NeedsRestock(),
	}
	if e.PhysicalProduct != nil {
		v.ProductName = e.PhysicalProduct.Name
	}
	if e.LastMovement != nil {
		s := e.LastMovement.Format("02/01/2006 15:04")
		v.LastMovement = &s
	}
	return v
}

func (s *Service) List(ctx context.Context) ([]View, error) {
	var rows []models.Inventory
	if err := s.DB.WithContext(ctx).Preload("PhysicalProduct").Find(&rows).Error; err != nil {
		return nil, err
	}

	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, toView(&rows[i]))
	}
	return views, nil
}

func (s *Service) ByProduct(ctx context.Context, productID uint) (*View, error) {
	var row models.Inventory
	err := s.DB.WithContext(ctx).Preload("PhysicalProduct").
		Where("physical_product_id = ?", productID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: estoque do produto não encontrado", ErrNotFound)
		}
		return nil, err
	}

	v := toView(&row)
	return &v, nil
}

// Adjust applies one movement to the product's inventory row. Business rule
// violations (quantity, availability) surface as validation errors.
func (s *Service) Adjust(ctx context.Context, productID uint, kind string, quantity int) (*View, error) {
	var row models.Inventory

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("PhysicalProduct").
			Where("physical_product_id = ?", productID).First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: estoque do produto não encontrado", ErrNotFound)
			}
			return err
		}

		switch kind {
		case AdjustIn:
			err = row.AddStock(quantity)
		case AdjustOut:
			err = row.RemoveStock(quantity)
		case AdjustReserve:
			err = row.Reserve(quantity)
		case AdjustRelease:
			err = row.ReleaseReservation(quantity)
		default:
			return fmt.Errorf("%w: tipo de ajuste inválido, use: entrada, saida, reserva ou liberar", ErrValidation)
		}
		if err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}

		return tx.Save(&row).Error
	})

	if txErr != nil {
		return nil, txErr
	}

	v := toView(&row)
	return &v, nil
}
