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
	"github.com/bmartins/loja-online/internal/service/cashier"
)

type CashierHandler struct {
	Svc      *cashier.Service
	Producer *mykafka.Producer
}

func (h *CashierHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cash_events", fmt.Sprint(event["storeID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func cashierStatus(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, cashier.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, cashier.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, cashier.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func storeParam(c echo.Context) (uint, error) {
	storeID, err := strconv.Atoi(c.Param("storeId"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid store id")
	}
	return uint(storeID), nil
}

func (h *CashierHandler) Open(c echo.Context) error {
	storeID, err := storeParam(c)
	if err != nil {
		return err
	}

	var req struct {
		InitialBalance float64 `json:"initial_balance"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	register, err := h.Svc.Open(c.Request().Context(), storeID, req.InitialBalance)
	if err != nil {
		return cashierStatus(err)
	}

	h.publish(c, map[string]any{
		"type":       "register_opened",
		"storeID":    storeID,
		"registerID": register.ID,
		"balance":    register.OpeningBalance,
	})

	return c.JSON(http.StatusCreated, register)
}

func (h *CashierHandler) Close(c echo.Context) error {
	storeID, err := storeParam(c)
	if err != nil {
		return err
	}

	summary, err := h.Svc.Close(c.Request().Context(), storeID)
	if err != nil {
		return cashierStatus(err)
	}

	h.publish(c, map[string]any{
		"type":       "register_closed",
		"storeID":    storeID,
		"registerID": summary.RegisterID,
		"balance":    summary.FinalBalance,
	})

	return c.JSON(http.StatusOK, summary)
}

func (h *CashierHandler) Reopen(c echo.Context) error {
	registerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid register id")
	}

	register, err := h.Svc.Reopen(c.Request().Context(), uint(registerID))
	if err != nil {
		return cashierStatus(err)
	}

	h.publish(c, map[string]any{
		"type":       "register_reopened",
		"storeID":    register.StoreID,
		"registerID": register.ID,
	})

	return c.JSON(http.StatusOK, register)
}

func (h *CashierHandler) AddTransaction(c echo.Context) error {
	storeID, err := storeParam(c)
	if err != nil {
		return err
	}

	var req cashier.TransactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	trans, balance, err := h.Svc.AddTransaction(c.Request().Context(), storeID, req)
	if err != nil {
		return cashierStatus(err)
	}

	h.publish(c, map[string]any{
		"type":    "transaction_added",
		"storeID": storeID,
		"kind":    trans.Type,
		"value":   trans.Value,
		"balance": balance,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"transaction": trans,
		"balance":     balance,
	})
}

func (h *CashierHandler) Get(c echo.Context) error {
	storeID, err := storeParam(c)
	if err != nil {
		return err
	}

	lastN, _ := strconv.Atoi(c.QueryParam("last"))
	register, trans, err := h.Svc.ByStore(c.Request().Context(), storeID, lastN)
	if err != nil {
		return cashierStatus(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"register":     register,
		"transactions": trans,
	})
}

// Balance derives Entrada minus Saida from the transaction log for a day
// (date=YYYY-MM-DD) or a range (from/to, RFC 3339).
func (h *CashierHandler) Balance(c echo.Context) error {
	registerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid register id")
	}

	if day := c.QueryParam("date"); day != "" {
		parsed, err := time.Parse("2006-01-02", day)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "data inválida, use YYYY-MM-DD")
		}
		balance, err := h.Svc.DailyBalance(c.Request().Context(), uint(registerID), parsed)
		if err != nil {
			return cashierStatus(err)
		}
		return c.JSON(http.StatusOK, echo.Map{"date": day, "balance": balance})
	}

	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "parâmetro from inválido")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "parâmetro to inválido")
	}

	balance, err := h.Svc.PeriodBalance(c.Request().Context(), uint(registerID), from, to)
	if err != nil {
		return cashierStatus(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"from": from, "to": to, "balance": balance})
}
