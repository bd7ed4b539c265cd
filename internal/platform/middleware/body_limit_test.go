package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"512K", 512 << 10},
		{"1M", 1 << 20},
		{"10M", 10 << 20},
		{"1G", 1 << 30},
		{"2048", 2048},
		{"", 1 << 20},
		{"elephants", 1 << 20},
	}
	for _, tc := range cases {
		if got := parseLimit(tc.in); got != tc.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

// runLimited sends size bytes at target through BodyLimit(defaultLimit,
// exchangeLimit) and reports whether the inner handler ran.
func runLimited(t *testing.T, defaultLimit, exchangeLimit, target string, size int) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(bytes.Repeat([]byte("x"), size)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := BodyLimit(defaultLimit, exchangeLimit)(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	return rec, called, err
}

func TestBodyLimit_PerRouteLimits(t *testing.T) {
	cases := []struct {
		name     string
		target   string
		def, exc string
		size     int
		accepted bool
	}{
		{"small case body accepted", "/api/v1/cases", "1M", "16M", 256, true},
		{"oversized case body rejected", "/api/v1/cases", "1K", "16M", 2048, false},
		{"big share payload fits the exchange limit", "/exchange/case/save", "1K", "10M", 2048, true},
		{"share payload over the exchange limit rejected", "/exchange/case/save", "512", "1K", 2048, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, called, err := runLimited(t, tc.def, tc.exc, tc.target, tc.size)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if called != tc.accepted {
				t.Fatalf("handler called = %v, want %v", called, tc.accepted)
			}
			if !tc.accepted {
				if rec.Code != http.StatusRequestEntityTooLarge {
					t.Errorf("expected 413, got %d", rec.Code)
				}
				assertErrorBody(t, rec)
			}
		})
	}
}

func TestBodyLimit_SkipsNilBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := BodyLimit("1M", "16M")(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to run for GET with no body")
	}
}

// Without a Content-Length the limit must still hold while the handler
// streams the body.
func TestBodyLimit_EnforcedDuringRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewReader(bytes.Repeat([]byte("a"), 1024)))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := BodyLimit("512", "10M")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})
	err := h(c)
	if err == nil {
		t.Fatal("expected an error once the read passes the limit")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", httpErr.Code)
	}
}
