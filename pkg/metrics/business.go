package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const businessSubsystem = "checkout"

var paymentsTotal = &Metric{
	Name:        "payments_total",
	Description: "Payments created, partitioned by gateway, method and resulting status.",
	Type:        "counter_vec",
	Args:        []string{"gateway", "method", "status"},
}

var webhooksTotal = &Metric{
	Name:        "webhooks_total",
	Description: "Inbound provider notifications by outcome.",
	Type:        "counter_vec",
	Args:        []string{"gateway", "outcome"},
}

var transitionsTotal = &Metric{
	Name:        "transitions_total",
	Description: "Applied transaction status transitions.",
	Type:        "counter_vec",
	Args:        []string{"from", "to", "source"},
}

var gatewayCallDur = &Metric{
	Name:        "gateway_call_ms",
	Description: "Outbound provider API latency in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"gateway", "op", "ok"},
}

var (
	paymentsVec    = NewMetric(paymentsTotal, businessSubsystem).(*prometheus.CounterVec)
	webhooksVec    = NewMetric(webhooksTotal, businessSubsystem).(*prometheus.CounterVec)
	transitionsVec = NewMetric(transitionsTotal, businessSubsystem).(*prometheus.CounterVec)
	gatewayCallVec = NewMetric(gatewayCallDur, businessSubsystem).(*prometheus.HistogramVec)
)

func init() {
	prometheus.MustRegister(paymentsVec, webhooksVec, transitionsVec, gatewayCallVec)
}

func ObservePayment(gateway, method, status string) {
	paymentsVec.WithLabelValues(gateway, method, status).Inc()
}

func ObserveWebhook(gateway, outcome string) {
	webhooksVec.WithLabelValues(gateway, outcome).Inc()
}

func ObserveTransition(from, to, source string) {
	transitionsVec.WithLabelValues(from, to, source).Inc()
}

func ObserveGatewayCall(gateway, op string, start time.Time, err error) {
	ok := "true"
	if err != nil {
		ok = "false"
	}
	gatewayCallVec.WithLabelValues(gateway, op, ok).Observe(MillisecondsSince(start))
}
