package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newContext(method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequestID_GeneratesNew(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	var seen string
	err := RequestID()(func(c echo.Context) error {
		seen = GetRequestID(c)
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("request id %q not echoed (%q)", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_PreservesValidIncoming(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	c.Request().Header.Set(RequestIDHeader, "my-custom-id")
	RequestID()(func(echo.Context) error { return nil })(c)
	if got := rec.Header().Get(RequestIDHeader); got != "my-custom-id" {
		t.Errorf("expected my-custom-id, got %s", got)
	}
}

func TestRequestID_ReplacesMalformedIncoming(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	c.Request().Header.Set(RequestIDHeader, "bad id\nwith newline")
	RequestID()(func(echo.Context) error { return nil })(c)
	if got := rec.Header().Get(RequestIDHeader); got == "" || strings.Contains(got, " ") {
		t.Errorf("expected a fresh id, got %q", got)
	}
}

func TestLogger_LevelsByStatus(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		level   string
		status  float64
	}{
		{"ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, "info", 200},
		{"client error", func(echo.Context) error { return echo.NewHTTPError(http.StatusNotFound) }, "warn", 404},
		{"server error", func(echo.Context) error { return errors.New("db down") }, "error", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c, _ := newContext(http.MethodGet, "/api/v1/tests", "")
			c.Set("request_id", "rid-1")
			Logger(zerolog.New(&buf))(tt.handler)(c)

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log not JSON: %v", err)
			}
			if entry["request_id"] != "rid-1" || entry["path"] != "/api/v1/tests" {
				t.Errorf("unexpected entry: %v", entry)
			}
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["status"] != tt.status {
				t.Errorf("status = %v, want %v", entry["status"], tt.status)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newContext(http.MethodGet, "/", "")
	err := Recovery(zerolog.New(&buf))(func(echo.Context) error {
		panic("boom")
	})(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if !strings.Contains(buf.String(), "boom") || !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	SecurityHeaders()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}
