package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"}, {201, "2xx"}, {302, "3xx"}, {404, "4xx"}, {503, "5xx"}, {100, ""},
	}
	for _, tt := range tests {
		if got := Category(tt.status); got != tt.want {
			t.Fatalf("Category(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewHTTPMetrics("metrics-test")
	// second construction must not panic on duplicate registration
	_ = NewHTTPMetrics("metrics-test")

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	got := testutil.ToFloat64(RequestCounter.WithLabelValues("metrics-test", http.MethodGet, "/ping", "204"))
	if got != 1 {
		t.Fatalf("expected 1 request counted, got %v", got)
	}
}
