package labtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/domain/client"
	"github.com/clinicops/clinic/internal/domain/screening"
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
	// Intake and screening – every clinic role
	floor := api.Group("/tests", auth.RequireRole("admin", "staff", "collector"))
	floor.GET("", h.ListTests)
	floor.POST("", h.CreateTest)
	floor.POST("/match", h.MatchDocument)
	floor.GET("/:id", h.GetTest)
	floor.GET("/:id/snapshots", h.ListSnapshots)
	floor.POST("/:id/preview", h.PreviewClassification)
	floor.POST("/:id/screen", h.RecordScreen)

	// Result decisions – admin, staff
	review := api.Group("/tests", auth.RequireRole("admin", "staff"))
	review.POST("/:id/decision", h.Decide)
	review.POST("/:id/confirmation-results", h.RecordConfirmationResults)
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
	case errors.Is(err, ErrNotFound), errors.Is(err, client.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrFinalized), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

type createTestRequest struct {
	ClientID       uuid.UUID `json:"client_id"`
	CollectionDate time.Time `json:"collection_date"`
	TestType       string    `json:"test_type"`
}

func (h *Handler) CreateTest(c echo.Context) error {
	var req createTestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t := &TestRecord{ClientID: req.ClientID, CollectionDate: req.CollectionDate, TestType: req.TestType}
	if err := h.svc.CreateTest(c.Request().Context(), t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTests(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status")}
	if raw := c.QueryParam("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid client_id")
		}
		f.ClientID = id
	}
	tests, total, err := h.svc.ListTests(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if tests == nil {
		tests = []*TestRecord{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(tests, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListSnapshots(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	snaps, err := h.svc.Snapshots(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if snaps == nil {
		snaps = []*MedicationsSnapshot{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": snaps, "count": len(snaps)})
}

type matchRequest struct {
	Workflow   screening.Workflow `json:"workflow"`
	SelectedID string             `json:"selected_id"`
	Document   json.RawMessage    `json:"document"`
}

func (h *Handler) MatchDocument(c echo.Context) error {
	var req matchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Document) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "document is required")
	}
	doc, err := ParseExtractedDocument(req.Document)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Workflow == "" {
		req.Workflow = screening.WorkflowScreen
	}
	matches, err := h.svc.MatchDocument(c.Request().Context(), doc, req.Workflow, req.SelectedID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"document": doc,
		"data":     matches,
		"count":    len(matches),
	})
}

type screenRequest struct {
	DetectedSubstances screening.SubstanceSet `json:"detected_substances"`
	Dilute             bool                   `json:"dilute"`
}

func bindScreen(c echo.Context) (uuid.UUID, screenRequest, error) {
	var req screenRequest
	id, err := parseID(c)
	if err != nil {
		return uuid.Nil, req, err
	}
	if err := c.Bind(&req); err != nil {
		return uuid.Nil, req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DetectedSubstances == nil {
		return uuid.Nil, req, echo.NewHTTPError(http.StatusBadRequest, "detected_substances is required")
	}
	return id, req, nil
}

func (h *Handler) PreviewClassification(c echo.Context) error {
	id, req, err := bindScreen(c)
	if err != nil {
		return err
	}
	result, err := h.svc.PreviewClassification(c.Request().Context(), id, req.DetectedSubstances, req.Dilute)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) RecordScreen(c echo.Context) error {
	id, req, err := bindScreen(c)
	if err != nil {
		return err
	}
	t, err := h.svc.RecordScreen(c.Request().Context(), id, req.DetectedSubstances, req.Dilute)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type decisionRequest struct {
	Decision   screening.Decision        `json:"decision"`
	Substances []screening.SubstanceCode `json:"substances"`
}

func (h *Handler) Decide(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Decide(c.Request().Context(), id, req.Decision, req.Substances)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type confirmationRequest struct {
	Results []screening.ConfirmationResult `json:"results"`
}

type confirmationResponse struct {
	Test       *TestRecord               `json:"test"`
	Complete   bool                      `json:"complete"`
	Missing    []screening.SubstanceCode `json:"missing"`
	Unexpected []screening.SubstanceCode `json:"unexpected"`
}

func (h *Handler) RecordConfirmationResults(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req confirmationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.RecordConfirmationResults(c.Request().Context(), id, req.Results)
	if err != nil {
		return httpError(err)
	}
	missing, unexpected := screening.ConfirmationGaps(t.ConfirmationSubstances, t.ConfirmationResults)
	if missing == nil {
		missing = []screening.SubstanceCode{}
	}
	if unexpected == nil {
		unexpected = []screening.SubstanceCode{}
	}
	return c.JSON(http.StatusOK, confirmationResponse{
		Test:       t,
		Complete:   t.IsFinalized(),
		Missing:    missing,
		Unexpected: unexpected,
	})
}
