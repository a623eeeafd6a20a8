package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
	"github.com/bmartins/loja-online/internal/mykafka"
	"github.com/bmartins/loja-online/internal/service/search"
	"github.com/bmartins/loja-online/internal/util"
)

const (
	KindPhysical = "fisico"
	KindDigital  = "digital"
)

type ProductHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	Index    string
	Producer *mykafka.Producer
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *ProductHandler) index(c echo.Context, doc search.Doc) {
	if h.ES == nil {
		return
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		c.Logger().Errorf("ES marshal error: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	res, err := h.ES.Index(
		h.Index,
		bytes.NewReader(payload),
		h.ES.Index.WithContext(ctx),
		h.ES.Index.WithDocumentID(fmt.Sprintf("%s-%d", doc.Kind, doc.ID)),
	)
	if err != nil {
		c.Logger().Errorf("ES index error: %v", err)
		return
	}
	res.Body.Close()
}

func (h *ProductHandler) deindex(c echo.Context, kind string, id uint) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	res, err := h.ES.Delete(h.Index, fmt.Sprintf("%s-%d", kind, id), h.ES.Delete.WithContext(ctx))
	if err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
		return
	}
	res.Body.Close()
}

func pageParams(c echo.Context) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	size, _ = strconv.Atoi(c.QueryParam("size"))
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = util.DefaultPageSize
	}
	return page, size
}

type physicalRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	SKU           string  `json:"sku"`
	StoreID       uint    `json:"store_id"`
	CategoryID    uint    `json:"category_id"`
	Weight        float64 `json:"weight"`
	Height        float64 `json:"height"`
	Width         float64 `json:"width"`
	Depth         float64 `json:"depth"`
	InitialStock  int     `json:"initial_stock"`
	ReorderPoint  int     `json:"reorder_point"`
	MinimumStock  int     `json:"minimum_stock"`
}

func (r *physicalRequest) validate() error {
	if r.Name == "" {
		return errors.New("nome é obrigatório")
	}
	if r.Price <= 0 {
		return errors.New("preço deve ser maior que zero")
	}
	if r.SKU == "" {
		return errors.New("sku é obrigatório")
	}
	if r.InitialStock < 0 {
		return errors.New("estoque inicial não pode ser negativo")
	}
	return nil
}

// CreatePhysical stores the product and seeds its inventory row in the same
// transaction, so a physical product never exists without stock tracking.
func (h *ProductHandler) CreatePhysical(c echo.Context) error {
	var req physicalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	product := models.PhysicalProduct{
		ProductBase: models.ProductBase{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			SKU:         req.SKU,
			StoreID:     req.StoreID,
			CategoryID:  req.CategoryID,
			Active:      true,
			CreatedAt:   time.Now(),
		},
		Weight: req.Weight,
		Height: req.Height,
		Width:  req.Width,
		Depth:  req.Depth,
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		inv := models.Inventory{
			PhysicalProductID: product.ID,
			QuantityAvailable: req.InitialStock,
			ReorderPoint:      req.ReorderPoint,
			MinimumStock:      req.MinimumStock,
		}
		return tx.Create(&inv).Error
	})
	if txErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.index(c, search.Doc{
		ID:          product.ID,
		Kind:        KindPhysical,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		SKU:         product.SKU,
	})
	h.publish(c, map[string]any{
		"type":      "product_created",
		"kind":      KindPhysical,
		"productID": product.ID,
		"name":      product.Name,
	})

	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) ListPhysical(c echo.Context) error {
	page, size := pageParams(c)
	from, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.PhysicalProduct{}).Where("active = ?", true).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var products []models.PhysicalProduct
	err := h.DB.Preload("Inventory").Where("active = ?", true).
		Order("id").Offset(from).Limit(limit).Find(&products).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": products,
		"page":  page,
		"size":  limit,
		"total": total,
	})
}

func (h *ProductHandler) GetPhysical(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.PhysicalProduct
	if err := h.DB.Preload("Inventory").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"product":    product,
		"dimensions": product.Dimensions(),
		"volume":     product.Volume(),
		"can_ship":   product.CanShip(),
	})
}

func (h *ProductHandler) UpdatePhysical(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.PhysicalProduct
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req physicalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Description != "" {
		product.Description = req.Description
	}
	if req.Price > 0 {
		product.Price = req.Price
	}
	if req.Weight > 0 {
		product.Weight = req.Weight
	}
	if req.Height > 0 {
		product.Height = req.Height
	}
	if req.Width > 0 {
		product.Width = req.Width
	}
	if req.Depth > 0 {
		product.Depth = req.Depth
	}
	now := time.Now()
	product.UpdatedAt = &now

	if err := h.DB.Save(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, search.Doc{
		ID:          product.ID,
		Kind:        KindPhysical,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		SKU:         product.SKU,
	})
	h.publish(c, map[string]any{
		"type":      "product_updated",
		"kind":      KindPhysical,
		"productID": product.ID,
	})

	return c.JSON(http.StatusOK, product)
}

// DeletePhysical deactivates instead of deleting so existing order history
// keeps a valid reference.
func (h *ProductHandler) DeletePhysical(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	result := h.DB.Model(&models.PhysicalProduct{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
	}

	h.deindex(c, KindPhysical, uint(id))
	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"kind":      KindPhysical,
		"productID": uint(id),
	})

	return c.NoContent(http.StatusNoContent)
}

type digitalRequest struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Price         float64    `json:"price"`
	SKU           string     `json:"sku"`
	StoreID       uint       `json:"store_id"`
	CategoryID    uint       `json:"category_id"`
	DownloadURL   string     `json:"download_url"`
	FileSizeMB    float64    `json:"file_size_mb"`
	FileFormat    string     `json:"file_format"`
	DownloadLimit int        `json:"download_limit"`
	ExpiresAt     *time.Time `json:"expires_at"`
	LicenseKey    string     `json:"license_key"`
}

func (r *digitalRequest) validate() error {
	if r.Name == "" {
		return errors.New("nome é obrigatório")
	}
	if r.Price <= 0 {
		return errors.New("preço deve ser maior que zero")
	}
	if r.SKU == "" {
		return errors.New("sku é obrigatório")
	}
	if r.DownloadURL == "" {
		return errors.New("url de download é obrigatória")
	}
	return nil
}

func (h *ProductHandler) CreateDigital(c echo.Context) error {
	var req digitalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	product := models.DigitalProduct{
		ProductBase: models.ProductBase{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			SKU:         req.SKU,
			StoreID:     req.StoreID,
			CategoryID:  req.CategoryID,
			Active:      true,
			CreatedAt:   time.Now(),
		},
		DownloadURL: req.DownloadURL,
		FileSizeMB:  req.FileSizeMB,
		FileFormat:  req.FileFormat,
		ExpiresAt:   req.ExpiresAt,
		LicenseKey:  req.LicenseKey,
	}
	if req.DownloadLimit > 0 {
		product.DownloadLimit = req.DownloadLimit
	} else {
		product.DownloadLimit = 3
	}

	if err := h.DB.Create(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, search.Doc{
		ID:          product.ID,
		Kind:        KindDigital,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		SKU:         product.SKU,
	})
	h.publish(c, map[string]any{
		"type":      "product_created",
		"kind":      KindDigital,
		"productID": product.ID,
		"name":      product.Name,
	})

	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) ListDigital(c echo.Context) error {
	page, size := pageParams(c)
	from, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.DigitalProduct{}).Where("active = ?", true).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var products []models.DigitalProduct
	err := h.DB.Where("active = ?", true).Order("id").Offset(from).Limit(limit).Find(&products).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": products,
		"page":  page,
		"size":  limit,
		"total": total,
	})
}

func (h *ProductHandler) GetDigital(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.DigitalProduct
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"product":    product,
		"link_valid": product.LinkValid(),
	})
}

func (h *ProductHandler) UpdateDigital(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.DigitalProduct
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req digitalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Description != "" {
		product.Description = req.Description
	}
	if req.Price > 0 {
		product.Price = req.Price
	}
	if req.DownloadURL != "" {
		product.DownloadURL = req.DownloadURL
	}
	if req.FileFormat != "" {
		product.FileFormat = req.FileFormat
	}
	if req.DownloadLimit > 0 {
		product.DownloadLimit = req.DownloadLimit
	}
	if req.ExpiresAt != nil {
		product.ExpiresAt = req.ExpiresAt
	}
	now := time.Now()
	product.UpdatedAt = &now

	if err := h.DB.Save(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, search.Doc{
		ID:          product.ID,
		Kind:        KindDigital,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		SKU:         product.SKU,
	})
	h.publish(c, map[string]any{
		"type":      "product_updated",
		"kind":      KindDigital,
		"productID": product.ID,
	})

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteDigital(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	result := h.DB.Model(&models.DigitalProduct{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
	}

	h.deindex(c, KindDigital, uint(id))
	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"kind":      KindDigital,
		"productID": uint(id),
	})

	return c.NoContent(http.StatusNoContent)
}

// Download issues a tokenized link for a digital product the client bought.
func (h *ProductHandler) Download(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID, ok := c.Get("userID").(uint)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	var product models.DigitalProduct
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "produto não encontrado")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var done int64
	err = h.DB.Model(&models.Notification{}).
		Where("user_id = ? AND channel = ? AND message LIKE ?", userID, "Download", fmt.Sprintf("%%produto %d%%", product.ID)).
		Count(&done).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !product.CanDownload(int(done)) {
		return echo.NewHTTPError(http.StatusForbidden, "limite de downloads atingido ou link expirado")
	}

	link := product.DownloadLink(userID)
	record := models.Notification{
		Channel:   "Download",
		Recipient: fmt.Sprint(userID),
		Message:   fmt.Sprintf("Download do produto %d emitido", product.ID),
		Status:    "Enviada",
		UserID:    &userID,
		SentAt:    time.Now(),
	}
	if err := h.DB.Create(&record).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"download_url": link,
		"remaining":    product.DownloadLimit - int(done) - 1,
	})
}
