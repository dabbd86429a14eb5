package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/auth"
)

// Handler exposes the notification log to administrators.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications", auth.RequireRole("admin"))
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/templates", h.Templates)
	g.GET("/:id", h.Get)
	g.POST("/:id/retry", h.Retry)
}

func (h *Handler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.List(c.QueryParam("recipient"), 100))
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Retry(c echo.Context) error {
	n, err := h.manager.Retry(c.Request().Context(), c.Param("id"))
	if n == nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}

func (h *Handler) Templates(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.templates.Templates())
}
