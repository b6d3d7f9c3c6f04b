package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequests = &Metric{
	Name:        "requests_total",
	Description: "HTTP requests by status code, method and route template.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "route"},
}

var httpDuration = &Metric{
	Name:        "request_duration_ms",
	Description: "HTTP request latency in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "route"},
}

var httpResponseSize = &Metric{
	Name:        "response_size_bytes",
	Description: "HTTP response body size in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "route"},
}

type HTTPOptions struct {
	Subsystem string
	// Skip lists path prefixes that are served but not recorded.
	Skip []string
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// HTTP records per-route request metrics. Routes are labeled by their gin
// template so /payments/status?id=... does not explode cardinality, and
// unmatched paths share one label.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.SummaryVec
	skip     []string
}

func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &HTTP{skip: opts.Skip}
	for _, m := range []*Metric{httpRequests, httpDuration, httpResponseSize} {
		c, err := register(reg, NewMetric(m, opts.Subsystem))
		if err != nil {
			return nil, err
		}
		switch m {
		case httpRequests:
			h.requests = c.(*prometheus.CounterVec)
		case httpDuration:
			h.duration = c.(*prometheus.HistogramVec)
		case httpResponseSize:
			h.size = c.(*prometheus.SummaryVec)
		}
	}
	return h, nil
}

func (h *HTTP) skipped(path string) bool {
	for _, p := range h.skip {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (h *HTTP) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.skipped(c.Request.URL.Path) {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		h.requests.WithLabelValues(code, c.Request.Method, route).Inc()
		h.duration.WithLabelValues(code, c.Request.Method, route).Observe(MillisecondsSince(start))
		h.size.WithLabelValues(code, c.Request.Method, route).Observe(float64(max(c.Writer.Size(), 0)))
	}
}

// NewServer exposes the default gatherer on addr under /metrics. The caller
// owns its lifecycle.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
