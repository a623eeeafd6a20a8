package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
)

type ReviewHandler struct {
	DB *gorm.DB
}

type reviewRequest struct {
	Kind      string `json:"kind"`
	ProductID uint   `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// Create records the authenticated client's rating of a product variant.
func (h *ReviewHandler) Create(c echo.Context) error {
	clientID, ok := c.Get("userID").(uint)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	review := models.Review{
		ClientID:  clientID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	if !review.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "nota deve estar entre 1 e 5")
	}

	switch req.Kind {
	case KindPhysical:
		var p models.PhysicalProduct
		if err := h.DB.First(&p, req.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		review.PhysicalProductID = &p.ID
	case KindDigital:
		var p models.DigitalProduct
		if err := h.DB.First(&p, req.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		review.DigitalProductID = &p.ID
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind deve ser fisico ou digital")
	}

	if err := h.DB.Create(&review).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, review)
}

// ListByProduct returns a variant's reviews, newest first, with the average
// rating.
func (h *ReviewHandler) ListByProduct(c echo.Context) error {
	kind := c.QueryParam("kind")
	productID, err := strconv.Atoi(c.QueryParam("product_id"))
	if err != nil || productID < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "parâmetro product_id inválido")
	}

	query := h.DB.Model(&models.Review{})
	switch kind {
	case KindPhysical:
		query = query.Where("physical_product_id = ?", productID)
	case KindDigital:
		query = query.Where("digital_product_id = ?", productID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind deve ser fisico ou digital")
	}

	var reviews []models.Review
	if err := query.Order("created_at DESC").Find(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var average float64
	for _, r := range reviews {
		average += float64(r.Rating)
	}
	if len(reviews) > 0 {
		average /= float64(len(reviews))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items":   reviews,
		"count":   len(reviews),
		"average": average,
	})
}
