package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=5&offset=10", 5, 10},
		{"limit=500", MaxLimit, 0},
		{"limit=-1&offset=-4", DefaultLimit, 0},
		{"limit=abc&offset=xyz", DefaultLimit, 0},
		{"limit=0", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := FromContext(contextWithQuery(tt.query))
		if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
			t.Errorf("FromContext(%q) = %+v, want limit=%d offset=%d", tt.query, p, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a"}, 25, 10, 10)
	if !r.HasMore || r.NextOffset == nil || *r.NextOffset != 20 {
		t.Errorf("expected next page at 20, got %+v", r)
	}

	last := NewResponse([]string{"a"}, 25, 10, 20)
	if last.HasMore || last.NextOffset != nil {
		t.Errorf("last page should have no next, got %+v", last)
	}
}

func TestParams_SQL(t *testing.T) {
	if got := (Params{Limit: 20, Offset: 40}).SQL(); got != "LIMIT 20 OFFSET 40" {
		t.Errorf("SQL() = %q", got)
	}
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	if got := Window(items, Params{Limit: 2, Offset: 1}); len(got) != 2 || got[0] != 2 {
		t.Errorf("got %v", got)
	}
	if got := Window(items, Params{Limit: 10, Offset: 3}); len(got) != 2 {
		t.Errorf("got %v", got)
	}
	if got := Window(items, Params{Limit: 10, Offset: 9}); got == nil || len(got) != 0 {
		t.Errorf("got %#v", got)
	}
}
