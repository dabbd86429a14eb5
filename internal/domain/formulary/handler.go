package formulary

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/auth"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/formulary", auth.RequireRole("admin", "staff", "collector"))
	g.GET("", h.Suggest)
	g.GET("/:name", h.Lookup)
}

func (h *Handler) Suggest(c echo.Context) error {
	limit := DefaultSuggestLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	entries := h.catalog.Suggest(c.QueryParam("q"), limit)
	return c.JSON(http.StatusOK, map[string]interface{}{"data": entries, "count": len(entries)})
}

func (h *Handler) Lookup(c echo.Context) error {
	e, ok := h.catalog.Lookup(c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "medication not in formulary")
	}
	return c.JSON(http.StatusOK, e)
}
