package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func timeoutContext(t *testing.T, target string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequestTimeout_FastHandlerUnaffected(t *testing.T) {
	c, _ := timeoutContext(t, "/api/v1/cases")

	var sawDeadline bool
	h := RequestTimeout(5 * time.Second)(func(c echo.Context) error {
		_, sawDeadline = c.Request().Context().Deadline()
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawDeadline {
		t.Error("handler context must carry the deadline")
	}
}

func TestRequestTimeout_SlowHandlerGets504(t *testing.T) {
	c, rec := timeoutContext(t, "/api/v1/cases")

	h := RequestTimeout(50 * time.Millisecond)(func(c echo.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return c.String(http.StatusOK, "ok")
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	})
	// The middleware writes the 504 body itself instead of returning the
	// context error.
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
	assertErrorBody(t, rec)
}

func TestRequestTimeout_HandlerErrorsPassThrough(t *testing.T) {
	c, _ := timeoutContext(t, "/api/v1/cases/123")

	h := RequestTimeout(5 * time.Second)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	})
	err := h(c)
	if err == nil {
		t.Fatal("expected the handler error back")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", httpErr.Code)
	}
}
