package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bmartins/loja-online/internal/mykafka"
	"github.com/bmartins/loja-online/internal/service/inventory"
)

type InventoryHandler struct {
	Svc      *inventory.Service
	Producer *mykafka.Producer
}

func (h *InventoryHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "stock_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func inventoryStatus(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, inventory.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *InventoryHandler) List(c echo.Context) error {
	views, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return inventoryStatus(err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *InventoryHandler) ByProduct(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	view, err := h.Svc.ByProduct(c.Request().Context(), uint(productID))
	if err != nil {
		return inventoryStatus(err)
	}
	return c.JSON(http.StatusOK, view)
}

// Adjust applies one stock movement: entrada, saida, reserva or liberar.
func (h *InventoryHandler) Adjust(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var req struct {
		Kind     string `json:"kind"`
		Quantity int    `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	view, err := h.Svc.Adjust(c.Request().Context(), uint(productID), req.Kind, req.Quantity)
	if err != nil {
		return inventoryStatus(err)
	}

	h.publish(c, map[string]any{
		"type":      "stock_adjusted",
		"productID": uint(productID),
		"kind":      req.Kind,
		"quantity":  req.Quantity,
		"real":      view.RealStock,
		"status":    view.Status,
	})

	return c.JSON(http.StatusOK, view)
}
