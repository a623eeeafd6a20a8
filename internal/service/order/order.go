package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/logging"
	"github.com/bmartins/loja-online/internal/models"
	"github.com/bmartins/loja-online/internal/service/notification"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 409
)

type Service struct {
	DB            *gorm.DB
	Notifications *notification.Service
	AdminEmail    string
}

// Freight is a step function over the summed weight of the physical lines.
func Freight(totalWeight float64) float64 {
	switch {
	case totalWeight <= 1:
		return 15.00
	case totalWeight <= 5:
		return 25.00
	case totalWeight <= 10:
		return 35.00
	default:
		return 50.00
	}
}

// nextOrderNumber builds PED + yyyyMMdd + a 4 digit daily sequence by
// scanning the highest number already issued under today's prefix. Past
// 9999 the sequence widens, so the scan orders by length before value to
// keep the comparison numeric.
func nextOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	prefix := "PED" + now.Format("20060102")

	var last models.Order
	err := tx.Where("number LIKE ?", prefix+"%").
		Order("length(number) DESC, number DESC").First(&last).Error

	seq := 1
	switch {
	case err == nil:
		n, convErr := strconv.Atoi(last.Number[len(prefix):])
		if convErr != nil {
			return "", fmt.Errorf("número de pedido inválido %q: %w", last.Number, convErr)
		}
		seq = n + 1
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return "", err
	}

	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

type PlaceRequest struct {
	ClientID          uint   `json:"client_id"`
	DeliveryAddressID uint   `json:"delivery_address_id"`
	PaymentMethod     string `json:"payment_method"`
}

// Place turns the client's cart into an order: availability check, totals,
// item snapshots, inventory decrement, payment, shipment for physical goods,
// cart cleanup and the Entrada on the store's open register — all in one
// transaction. Notifications and events go out after commit, best effort.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*models.Order, error) {
	l := logging.FromContext(ctx)

	var order models.Order

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Preload("Items").Where("client_id = ?", req.ClientID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: carrinho vazio", ErrValidation)
			}
			return err
		}
		if len(cart.Items) == 0 {
			return fmt.Errorf("%w: carrinho vazio", ErrValidation)
		}

		var (
			subtotal    float64
			totalWeight float64
			hasPhysical bool
			storeID     uint
			items       []models.OrderItem
			inventories = map[uint]*models.Inventory{}
		)

		for _, it := range cart.Items {
			item := models.OrderItem{
				PhysicalProductID: it.PhysicalProductID,
				DigitalProductID:  it.DigitalProductID,
				Quantity:          it.Quantity,
				UnitPrice:         it.UnitPrice,
			}

			switch {
			case it.PhysicalProductID != nil:
				var p models.PhysicalProduct
				if err := tx.Preload("Inventory").First(&p, *it.PhysicalProductID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: produto não encontrado", ErrNotFound)
					}
					return err
				}
				if p.Inventory == nil || !p.Inventory.HasStock(it.Quantity) {
					return fmt.Errorf("%w: produto %s sem estoque suficiente", ErrValidation, p.Name)
				}
				item.ProductName = p.Name
				inventories[p.Inventory.ID] = p.Inventory
				if err := p.Inventory.RemoveStock(it.Quantity); err != nil {
					return fmt.Errorf("%w: produto %s sem estoque suficiente", ErrValidation, p.Name)
				}
				totalWeight += p.Weight
				hasPhysical = true
				if storeID == 0 {
					storeID = p.StoreID
				}
			case it.DigitalProductID != nil:
				var p models.DigitalProduct
				if err := tx.First(&p, *it.DigitalProductID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: produto não encontrado", ErrNotFound)
					}
					return err
				}
				item.ProductName = p.Name
				if storeID == 0 {
					storeID = p.StoreID
				}
			default:
				return fmt.Errorf("%w: item de carrinho sem produto", ErrValidation)
			}

			subtotal += it.Subtotal()
			items = append(items, item)
		}

		var freight float64
		if hasPhysical {
			freight = Freight(totalWeight)
		}

		number, err := nextOrderNumber(tx, time.Now())
		if err != nil {
			return err
		}

		order = models.Order{
			Number:            number,
			ClientID:          req.ClientID,
			StoreID:           storeID,
			DeliveryAddressID: req.DeliveryAddressID,
			Subtotal:          subtotal,
			Freight:           freight,
			Total:             subtotal + freight,
			Status:            models.OrderStatusPending,
			CreatedAt:         time.Now(),
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		order.Items = items

		for _, inv := range inventories {
			if err := tx.Save(inv).Error; err != nil {
				return err
			}
		}

		payment := models.Payment{
			OrderID:   order.ID,
			Method:    req.PaymentMethod,
			Value:     order.Total,
			Status:    models.PaymentStatusPending,
			Reference: uuid.NewString(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		order.Payment = &payment

		if hasPhysical {
			days := 7
			shipment := models.Shipment{
				OrderID:       order.ID,
				Type:          "Standard",
				Value:         freight,
				Status:        models.ShipmentStatusWaiting,
				EstimatedDays: &days,
			}
			if err := tx.Create(&shipment).Error; err != nil {
				return err
			}
			order.Shipment = &shipment
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&cart).Update("updated_at", &now).Error; err != nil {
			return err
		}

		return s.recordSale(ctx, tx, &order)
	})

	if txErr != nil {
		return nil, txErr
	}

	s.notifyPlaced(ctx, &order)
	l.Info("pedido criado", "numero", order.Number, "total", order.Total)

	return &order, nil
}

// recordSale appends the Entrada for a completed order to the store's open
// register. A store without an open register just skips the ledger entry.
func (s *Service) recordSale(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	var register models.CashRegister
	err := tx.Where("store_id = ? AND status = ?", order.StoreID, models.RegisterStatusOpen).First(&register).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logging.FromContext(ctx).Warn("loja sem caixa aberto, venda não lançada",
				"loja", order.StoreID, "pedido", order.Number)
			return nil
		}
		return err
	}

	trans := models.CashTransaction{
		CashRegisterID: register.ID,
		Type:           models.TransactionIn,
		Category:       "Venda",
		Value:          order.Total,
		Description:    "Pedido " + order.Number,
		OrderID:        &order.ID,
		OccurredAt:     time.Now(),
	}
	if err := register.Apply(&trans); err != nil {
		return err
	}
	if err := tx.Create(&trans).Error; err != nil {
		return err
	}
	return tx.Save(&register).Error
}

func (s *Service) notifyPlaced(ctx context.Context, order *models.Order) {
	if s.Notifications == nil {
		return
	}

	var client models.User
	if err := s.DB.WithContext(ctx).First(&client, order.ClientID).Error; err == nil {
		msg := fmt.Sprintf("Seu pedido %s foi recebido. Total: R$ %.2f", order.Number, order.Total)
		s.Notifications.EnqueueEmail(client.Email, msg)
	}
	if s.AdminEmail != "" {
		s.Notifications.EnqueueEmail(s.AdminEmail,
			fmt.Sprintf("Novo pedido %s na loja %d", order.Number, order.StoreID))
	}

	for _, result := range s.Notifications.SendAll() {
		logging.FromContext(ctx).Info("notificação de pedido", "pedido", order.Number, "resultado", result)
	}
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").Preload("Payment").Preload("Shipment").
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: pedido %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &order, nil
}

func (s *Service) ListByClient(ctx context.Context, clientID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").Preload("Payment").
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// next legal status per current one; cancellation goes through Cancel.
var transitions = map[string]string{
	models.OrderStatusPending:   models.OrderStatusConfirmed,
	models.OrderStatusConfirmed: models.OrderStatusShipped,
	models.OrderStatusShipped:   models.OrderStatusDelivered,
}

// UpdateStatus advances an order along Pendente → Confirmado → Enviado →
// Entregue, carrying payment and shipment along.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status string) (*models.Order, error) {
	var order models.Order

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Payment").Preload("Shipment").First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: pedido %d", ErrNotFound, id)
			}
			return err
		}

		if transitions[order.Status] != status {
			return fmt.Errorf("%w: transição de %s para %s não permitida", ErrConflict, order.Status, status)
		}

		switch status {
		case models.OrderStatusConfirmed:
			if order.Payment != nil {
				order.Payment.Status = models.PaymentStatusApproved
				if err := tx.Save(order.Payment).Error; err != nil {
					return err
				}
			}
			if order.Shipment != nil {
				order.Shipment.Status = models.ShipmentStatusPreparing
				if err := tx.Save(order.Shipment).Error; err != nil {
					return err
				}
			}
		case models.OrderStatusShipped:
			if order.Shipment != nil {
				order.Shipment.TrackingCode = fmt.Sprintf("BR%d%d", time.Now().Unix(), order.ID)
				order.Shipment.Status = models.ShipmentStatusShipped
				if err := tx.Save(order.Shipment).Error; err != nil {
					return err
				}
			}
		case models.OrderStatusDelivered:
			if order.Shipment != nil {
				order.Shipment.Status = models.ShipmentStatusDelivered
				if err := tx.Save(order.Shipment).Error; err != nil {
					return err
				}
			}
		}

		now := time.Now()
		order.Status = status
		order.UpdatedAt = &now
		return tx.Save(&order).Error
	})

	if txErr != nil {
		return nil, txErr
	}
	return &order, nil
}

// Cancel rejects delivered orders, restores inventory for every physical
// line and flags the payment as refunded.
func (s *Service) Cancel(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").Preload("Payment").First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: pedido %d", ErrNotFound, id)
			}
			return err
		}

		if order.Status == models.OrderStatusDelivered {
			return fmt.Errorf("%w: pedido já entregue não pode ser cancelado", ErrConflict)
		}
		if order.Status == models.OrderStatusCancelled {
			return fmt.Errorf("%w: pedido já cancelado", ErrConflict)
		}

		for _, item := range order.Items {
			if item.PhysicalProductID == nil {
				continue
			}
			var inv models.Inventory
			if err := tx.Where("physical_product_id = ?", *item.PhysicalProductID).First(&inv).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}
			if err := inv.AddStock(item.Quantity); err != nil {
				return err
			}
			if err := tx.Save(&inv).Error; err != nil {
				return err
			}
		}

		if order.Payment != nil {
			order.Payment.Status = models.PaymentStatusRefunded
			if err := tx.Save(order.Payment).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		order.Status = models.OrderStatusCancelled
		order.UpdatedAt = &now
		return tx.Save(&order).Error
	})

	if txErr != nil {
		return nil, txErr
	}

	s.notifyCancelled(ctx, &order)
	return &order, nil
}

func (s *Service) notifyCancelled(ctx context.Context, order *models.Order) {
	if s.Notifications == nil {
		return
	}
	var client models.User
	if err := s.DB.WithContext(ctx).First(&client, order.ClientID).Error; err != nil {
		return
	}
	msg := fmt.Sprintf("Seu pedido %s foi cancelado e o pagamento estornado.", order.Number)
	if _, err := s.Notifications.SendTo(notification.Email{To: client.Email, Message: msg}, &client.ID, &order.ID); err != nil {
		logging.FromContext(ctx).Warn("falha ao notificar cancelamento", "pedido", order.Number, "error", err)
	}
}
