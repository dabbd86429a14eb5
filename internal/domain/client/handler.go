package client

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every clinic role
	read := api.Group("", auth.RequireRole("admin", "staff", "collector"))
	read.GET("/clients", h.ListClients)
	read.GET("/clients/search", h.SearchClients)
	read.GET("/clients/:id", h.GetClient)
	read.GET("/clients/:id/medications", h.ListMedications)

	// Write endpoints – admin, staff
	write := api.Group("", auth.RequireRole("admin", "staff"))
	write.POST("/clients", h.CreateClient)
	write.PUT("/clients/:id", h.UpdateClient)
	write.POST("/clients/:id/medications", h.AddMedication)
	write.PUT("/medications/:id", h.UpdateMedication)
	write.POST("/medications/:id/discontinue", h.DiscontinueMedication)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDiscontinued):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// -- Clients --

func (h *Handler) CreateClient(c echo.Context) error {
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateClient(c.Request().Context(), &cl); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) GetClient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cl, err := h.svc.GetClient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) UpdateClient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl.ID = id
	if err := h.svc.UpdateClient(c.Request().Context(), &cl); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClients(c echo.Context) error {
	pg := pagination.FromContext(c)
	clients, total, err := h.svc.ListClients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(clients, total, pg.Limit, pg.Offset))
}

func (h *Handler) SearchClients(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	results, err := h.svc.SearchClients(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": results, "count": len(results)})
}

// -- Medications --

func (h *Handler) AddMedication(c echo.Context) error {
	clientID, err := parseID(c)
	if err != nil {
		return err
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ClientID = clientID
	if err := h.svc.AddMedication(c.Request().Context(), &m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	clientID, err := parseID(c)
	if err != nil {
		return err
	}
	meds, err := h.svc.ListMedications(c.Request().Context(), clientID, c.QueryParam("status"))
	if err != nil {
		return httpError(err)
	}
	if meds == nil {
		meds = []*Medication{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": meds, "count": len(meds)})
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

type discontinueRequest struct {
	EndDate *time.Time `json:"end_date"`
}

func (h *Handler) DiscontinueMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req discontinueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.DiscontinueMedication(c.Request().Context(), id, req.EndDate)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}
