package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets are milliseconds. Card and PIX calls usually finish under
// two seconds; boleto registration and 3DS lookups can run to the gateway
// timeout.
var LatencyBuckets = []float64{
	10, 25, 50, 100, 200, 350, 500, 750,
	1000, 1500, 2000, 3000, 5000, 8000,
	12000, 20000, 30000,
}

// Metric describes a collector before it is built for a subsystem.
type Metric struct {
	Name        string
	Description string
	Type        string
	Args        []string
}

// NewMetric builds the collector for m. It panics on an unknown Type since
// definitions are package constants.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem, Name: m.Name, Help: m.Description,
		}, m.Args)
	case "gauge_vec":
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: subsystem, Name: m.Name, Help: m.Description,
		}, m.Args)
	case "histogram_vec":
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: LatencyBuckets,
		}, m.Args)
	case "summary_vec":
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Subsystem: subsystem, Name: m.Name, Help: m.Description,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, m.Args)
	default:
		panic("metrics: unknown type " + m.Type)
	}
}

// register adds c to reg, reusing an identical collector registered earlier.
func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}
