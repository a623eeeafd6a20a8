package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
)

// GetID resolves the authenticated client, preferring what the auth
// middleware already put on the context and falling back to the access
// cookie.
func GetID(c echo.Context, secret []byte) (uint, error) {
	if id, ok := c.Get("userID").(uint); ok {
		return id, nil
	}

	cookie, err := c.Cookie("accessToken")
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookie")
	}

	tok, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid subject")
	}
	return uint(sub), nil
}

// getOrCreateCart lazily creates the client's cart on first touch.
func getOrCreateCart(tx *gorm.DB, clientID uint) (*models.Cart, error) {
	var cart models.Cart
	err := tx.Preload("Items").Where("client_id = ?", clientID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{ClientID: clientID, CreatedAt: time.Now()}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func touch(tx *gorm.DB, cart *models.Cart) error {
	now := time.Now()
	return tx.Model(cart).Update("updated_at", &now).Error
}

func (h *Handler) publish(c echo.Context, key string, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
