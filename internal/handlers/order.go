package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bmartins/loja-online/internal/mykafka"
	"github.com/bmartins/loja-online/internal/service/order"
)

type OrderHandler struct {
	Svc      *order.Service
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, key string, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func orderStatus(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, order.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Place checks out the authenticated client's cart.
func (h *OrderHandler) Place(c echo.Context) error {
	userID, ok := c.Get("userID").(uint)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	var req order.PlaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.ClientID = userID

	placed, err := h.Svc.Place(c.Request().Context(), req)
	if err != nil {
		return orderStatus(err)
	}

	h.publish(c, placed.Number, map[string]any{
		"type":    "order_placed",
		"orderID": placed.ID,
		"number":  placed.Number,
		"total":   placed.Total,
	})

	return c.JSON(http.StatusCreated, placed)
}

func (h *OrderHandler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := h.Svc.Get(c.Request().Context(), uint(id))
	if err != nil {
		return orderStatus(err)
	}
	return c.JSON(http.StatusOK, o)
}

// List returns the authenticated client's orders, newest first.
func (h *OrderHandler) List(c echo.Context) error {
	userID, ok := c.Get("userID").(uint)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	orders, err := h.Svc.ListByClient(c.Request().Context(), userID)
	if err != nil {
		return orderStatus(err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	o, err := h.Svc.UpdateStatus(c.Request().Context(), uint(id), req.Status)
	if err != nil {
		return orderStatus(err)
	}

	h.publish(c, o.Number, map[string]any{
		"type":    "order_status_changed",
		"orderID": o.ID,
		"number":  o.Number,
		"status":  o.Status,
	})

	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := h.Svc.Cancel(c.Request().Context(), uint(id))
	if err != nil {
		return orderStatus(err)
	}

	h.publish(c, o.Number, map[string]any{
		"type":    "order_cancelled",
		"orderID": o.ID,
		"number":  o.Number,
	})

	return c.JSON(http.StatusOK, o)
}
