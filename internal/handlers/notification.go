package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bmartins/loja-online/internal/service/notification"
)

type NotificationHandler struct {
	Svc *notification.Service
}

func notificationStatus(err error) *echo.HTTPError {
	if errors.Is(err, notification.ErrInvalidEmail) || errors.Is(err, notification.ErrInvalidPhone) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	UserID  *uint  `json:"user_id"`
	OrderID *uint  `json:"order_id"`
}

func (h *NotificationHandler) SendEmail(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.Svc.SendTo(notification.Email{To: req.To, Message: req.Message}, req.UserID, req.OrderID)
	if err != nil {
		return notificationStatus(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"result": result})
}

// SendSMS retries up to three times before giving up.
func (h *NotificationHandler) SendSMS(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.Svc.SendWithRetry(notification.SMS{To: req.To, Message: req.Message}, 3)
	if err != nil {
		if errors.Is(err, notification.ErrInvalidPhone) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"result": result})
}

// Test queues one of each channel and drains the queue, reporting every
// result line including validation failures.
func (h *NotificationHandler) Test(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Email != "" {
		h.Svc.EnqueueEmail(req.Email, "Mensagem de teste da loja")
	}
	if req.Phone != "" {
		h.Svc.EnqueueSMS(req.Phone, "Mensagem de teste da loja")
	}

	results := h.Svc.SendAll()
	return c.JSON(http.StatusOK, echo.Map{"results": results})
}
