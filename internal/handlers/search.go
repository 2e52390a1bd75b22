package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/Frusadev/frusablog-backend/internal/service/search"
	"github.com/Frusadev/frusablog-backend/internal/util"
)

type SearchHandler struct {
	ES      *elasticsearch.Client
	ESIndex string
}

// Search answers full-text queries over published posts.
func (h *SearchHandler) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, docs, err := search.Search(c.Request().Context(), h.ES, h.ESIndex, query, offset, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "search failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total": total,
		"hits":  docs,
	})
}
