package handlers

import (
	"context"
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

type StoreHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *StoreHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "store_events", fmt.Sprint(event["storeID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

type storeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CNPJ        string `json:"cnpj"`
	Phone       string `json:"phone"`
}

func (h *StoreHandler) Create(c echo.Context) error {
	var req storeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "nome é obrigatório")
	}
	if req.CNPJ == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cnpj é obrigatório")
	}

	var existing models.Store
	err := h.DB.Where("cnpj = ?", req.CNPJ).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "já existe uma loja com este cnpj")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	store := models.Store{
		Name:        req.Name,
		Description: req.Description,
		CNPJ:        req.CNPJ,
		Phone:       req.Phone,
		Active:      true,
		CreatedAt:   time.Now(),
	}
	if err := h.DB.Create(&store).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":    "store_created",
		"storeID": store.ID,
		"name":    store.Name,
	})

	return c.JSON(http.StatusCreated, store)
}

func (h *StoreHandler) List(c echo.Context) error {
	var stores []models.Store
	if err := h.DB.Where("active = ?", true).Order("id").Find(&stores).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stores)
}

func (h *StoreHandler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var store models.Store
	if err := h.DB.First(&store, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "loja não encontrada")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, store)
}

func (h *StoreHandler) Update(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var store models.Store
	if err := h.DB.First(&store, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "loja não encontrada")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req storeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != "" {
		store.Name = req.Name
	}
	if req.Description != "" {
		store.Description = req.Description
	}
	if req.Phone != "" {
		store.Phone = req.Phone
	}

	if err := h.DB.Save(&store).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":    "store_updated",
		"storeID": store.ID,
	})

	return c.JSON(http.StatusOK, store)
}

// Delete deactivates; products and registers keep their store reference.
func (h *StoreHandler) Delete(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	result := h.DB.Model(&models.Store{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "loja não encontrada")
	}

	h.publish(c, map[string]any{
		"type":    "store_deleted",
		"storeID": uint(id),
	})

	return c.NoContent(http.StatusNoContent)
}
