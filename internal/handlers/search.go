package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/bmartins/loja-online/internal/service/search"
	"github.com/bmartins/loja-online/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

// Search runs a fuzzy multi-match over the product index, both variants.
func (h *SearchHandler) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "parâmetro q é obrigatório")
	}

	page, size := pageParams(c)
	from, limit := util.Calculate(page, size)

	total, docs, err := search.Search(c.Request().Context(), h.ES, h.Index, query, from, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": docs,
		"page":  page,
		"size":  limit,
		"total": total,
	})
}
