package middleware

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1M", 1 << 20},
		{"2MB", 2 << 20},
		{"512K", 512 << 10},
		{"1kb", 1 << 10},
		{"1G", 1 << 30},
		{"100", 100},
		{"", defaultBodyLimit},
		{"abc", defaultBodyLimit},
		{"-5", defaultBodyLimit},
	}
	for _, tt := range tests {
		if got := ParseSize(tt.in); got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBodyLimit_ContentLengthRejected(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", strings.Repeat("x", 20))
	err := BodyLimit("10")(func(echo.Context) error {
		t.Error("handler should not run")
		return nil
	})(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %v", err)
	}
}

func TestBodyLimit_StreamingCutOff(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", strings.Repeat("x", 20))
	c.Request().ContentLength = -1
	err := BodyLimit("10")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 while reading, got %v", err)
	}
}

func TestBodyLimit_WithinLimit(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", "small")
	var got []byte
	err := BodyLimit("1K")(func(c echo.Context) error {
		var err error
		got, err = io.ReadAll(c.Request().Body)
		return err
	})(c)
	if err != nil || string(got) != "small" {
		t.Errorf("got %q, %v", got, err)
	}
}
