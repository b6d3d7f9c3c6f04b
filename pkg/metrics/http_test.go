package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	h, err := NewHTTP(HTTPOptions{Subsystem: "test_http", Skip: []string{"/healthz"}, Registerer: reg})
	require.NoError(t, err)

	r := gin.New()
	r.Use(h.Middleware())
	r.GET("/payments/status", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/payments/status?id=a", "/payments/status?id=b", "/healthz", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2.0, testutil.ToFloat64(h.requests.WithLabelValues("200", "GET", "/payments/status")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.requests.WithLabelValues("404", "GET", "unmatched")))
	require.Equal(t, 2, testutil.CollectAndCount(h.requests), "healthz is skipped")

	again, err := NewHTTP(HTTPOptions{Subsystem: "test_http", Registerer: reg})
	require.NoError(t, err)
	require.Same(t, h.requests, again.requests)
}
