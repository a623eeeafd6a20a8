package cart

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
	"github.com/bmartins/loja-online/internal/mykafka"
)

type Handler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Producer  *mykafka.Producer
}

type cartResponse struct {
	Cart  *models.Cart `json:"cart"`
	Total float64      `json:"total"`
	Count int          `json:"count"`
}

func respond(cart *models.Cart) cartResponse {
	var total float64
	var count int
	for i := range cart.Items {
		total += cart.Items[i].Subtotal()
		count += cart.Items[i].Quantity
	}
	return cartResponse{Cart: cart, Total: total, Count: count}
}

// Get returns the client's cart, creating an empty one on first access.
func (h *Handler) Get(c echo.Context) error {
	clientID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	cart, err := getOrCreateCart(h.DB, clientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, respond(cart))
}

type addItemRequest struct {
	Kind      string `json:"kind"`
	ProductID uint   `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// AddItem puts a product variant in the cart, merging quantities when the
// same product is added twice. Price is snapshotted at add time.
func (h *Handler) AddItem(c echo.Context) error {
	clientID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantidade deve ser maior que zero")
	}

	var cart *models.Cart

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		cart, err = getOrCreateCart(tx, clientID)
		if err != nil {
			return err
		}

		var (
			unitPrice  float64
			physicalID *uint
			digitalID  *uint
		)

		switch req.Kind {
		case "fisico":
			var p models.PhysicalProduct
			if err := tx.Preload("Inventory").First(&p, req.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
				}
				return err
			}
			if !p.Active {
				return echo.NewHTTPError(http.StatusBadRequest, "produto inativo")
			}

			already := 0
			for i := range cart.Items {
				if cart.Items[i].PhysicalProductID != nil && *cart.Items[i].PhysicalProductID == p.ID {
					already = cart.Items[i].Quantity
				}
			}
			if p.Inventory == nil || !p.Inventory.HasStock(already+req.Quantity) {
				return echo.NewHTTPError(http.StatusBadRequest,
					fmt.Sprintf("produto %s sem estoque suficiente", p.Name))
			}

			unitPrice = p.Price
			physicalID = &p.ID
		case "digital":
			var p models.DigitalProduct
			if err := tx.First(&p, req.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
				}
				return err
			}
			if !p.Active {
				return echo.NewHTTPError(http.StatusBadRequest, "produto inativo")
			}
			unitPrice = p.Price
			digitalID = &p.ID
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "kind deve ser fisico ou digital")
		}

		for i := range cart.Items {
			it := &cart.Items[i]
			samePhysical := physicalID != nil && it.PhysicalProductID != nil && *it.PhysicalProductID == *physicalID
			sameDigital := digitalID != nil && it.DigitalProductID != nil && *it.DigitalProductID == *digitalID
			if samePhysical || sameDigital {
				it.Quantity += req.Quantity
				if err := tx.Save(it).Error; err != nil {
					return err
				}
				return touch(tx, cart)
			}
		}

		item := models.CartItem{
			CartID:            cart.ID,
			PhysicalProductID: physicalID,
			DigitalProductID:  digitalID,
			Quantity:          req.Quantity,
			UnitPrice:         unitPrice,
			AddedAt:           time.Now(),
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		cart.Items = append(cart.Items, item)
		return touch(tx, cart)
	})
	if txErr != nil {
		var he *echo.HTTPError
		if errors.As(txErr, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, fmt.Sprint(clientID), map[string]any{
		"type":      "cart_item_added",
		"clientID":  clientID,
		"kind":      req.Kind,
		"productID": req.ProductID,
		"quantity":  req.Quantity,
	})

	if err := h.DB.Preload("Items").First(cart, cart.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, respond(cart))
}

// UpdateQuantity sets a line's quantity, re-checking stock for physical
// products.
func (h *Handler) UpdateQuantity(c echo.Context) error {
	clientID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}
	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantidade deve ser maior que zero")
	}

	var cart models.Cart

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", clientID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "carrinho não encontrado")
			}
			return err
		}

		var item models.CartItem
		if err := tx.Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "item não encontrado")
			}
			return err
		}

		if item.PhysicalProductID != nil {
			var inv models.Inventory
			err := tx.Where("physical_product_id = ?", *item.PhysicalProductID).First(&inv).Error
			if err == nil && !inv.HasStock(req.Quantity) {
				return echo.NewHTTPError(http.StatusBadRequest, "estoque insuficiente para a quantidade pedida")
			}
		}

		item.Quantity = req.Quantity
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		return touch(tx, &cart)
	})
	if txErr != nil {
		var he *echo.HTTPError
		if errors.As(txErr, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, fmt.Sprint(clientID), map[string]any{
		"type":     "cart_item_updated",
		"clientID": clientID,
		"itemID":   uint(itemID),
		"quantity": req.Quantity,
	})

	if err := h.DB.Preload("Items").First(&cart, cart.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, respond(&cart))
}

func (h *Handler) RemoveItem(c echo.Context) error {
	clientID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}
	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	var cart models.Cart
	if err := h.DB.Where("client_id = ?", clientID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "carrinho não encontrado")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	result := h.DB.Where("id = ? AND cart_id = ?", itemID, cart.ID).Delete(&models.CartItem{})
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "item não encontrado")
	}
	if err := touch(h.DB, &cart); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, fmt.Sprint(clientID), map[string]any{
		"type":     "cart_item_removed",
		"clientID": clientID,
		"itemID":   uint(itemID),
	})

	if err := h.DB.Preload("Items").First(&cart, cart.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, respond(&cart))
}
