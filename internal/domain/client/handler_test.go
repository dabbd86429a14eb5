package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func jsonRequest(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestHandler_CreateClient(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonRequest(e, http.MethodPost, `{"first_name":"Jane","last_name":"Doe","email":"jane@example.com"}`)

	if err := h.CreateClient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Client
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID == uuid.Nil || got.LastName != "Doe" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateClient_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	c, _ := jsonRequest(e, http.MethodPost, `{"last_name":"Doe"}`)
	if code := httpCode(t, h.CreateClient(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetClient(t *testing.T) {
	h, e := newTestHandler()
	cl := createClient(t, h.svc, "Jane", "Doe")

	c, rec := jsonRequest(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues(cl.ID.String())
	if err := h.GetClient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonRequest(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if code := httpCode(t, h.GetClient(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	c, _ = jsonRequest(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if code := httpCode(t, h.GetClient(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListClients(t *testing.T) {
	h, e := newTestHandler()
	createClient(t, h.svc, "Ann", "Lee")
	createClient(t, h.svc, "Ben", "Lee")

	req := httptest.NewRequest(http.MethodGet, "/?limit=1", nil)
	rec := httptest.NewRecorder()
	if err := h.ListClients(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 2 || !body.HasMore {
		t.Errorf("unexpected page %s", rec.Body.String())
	}
}

func TestHandler_SearchClients(t *testing.T) {
	h, e := newTestHandler()
	createClient(t, h.svc, "Maria", "Garcia")

	req := httptest.NewRequest(http.MethodGet, "/?q=garcia", nil)
	rec := httptest.NewRecorder()
	if err := h.SearchClients(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Count != 1 {
		t.Errorf("expected 1 result, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/?q=garcia&limit=zero", nil)
	if code := httpCode(t, h.SearchClients(e.NewContext(req, httptest.NewRecorder()))); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_AddMedication(t *testing.T) {
	h, e := newTestHandler()
	cl := createClient(t, h.svc, "Jane", "Doe")

	c, rec := jsonRequest(e, http.MethodPost, `{"name":"Custom","detected_as":["thc","opiates"]}`)
	c.SetParamNames("id")
	c.SetParamValues(cl.ID.String())
	if err := h.AddMedication(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"detected_as":["opiates","thc"]`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, _ = jsonRequest(e, http.MethodPost, `{"name":"Custom","detected_as":["glue"]}`)
	c.SetParamNames("id")
	c.SetParamValues(cl.ID.String())
	if code := httpCode(t, h.AddMedication(c)); code != http.StatusBadRequest {
		t.Errorf("unknown substance: expected 400, got %d", code)
	}
}

func TestHandler_DiscontinueMedication_Conflict(t *testing.T) {
	h, e := newTestHandler()
	cl := createClient(t, h.svc, "Jane", "Doe")
	m := &Medication{ClientID: cl.ID, Name: "Marinol"}
	if err := h.svc.AddMedication(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	c, rec := jsonRequest(e, http.MethodPost, `{}`)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.DiscontinueMedication(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"discontinued"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, _ = jsonRequest(e, http.MethodPut, `{"name":"Marinol 10mg"}`)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if code := httpCode(t, h.UpdateMedication(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_ListMedications(t *testing.T) {
	h, e := newTestHandler()
	cl := createClient(t, h.svc, "Jane", "Doe")

	req := httptest.NewRequest(http.MethodGet, "/?status=active", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cl.ID.String())
	if err := h.ListMedications(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}
