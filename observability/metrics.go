package observability

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ContainersOpenedTotal counts container loads by result
	ContainersOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goasics_containers_opened_total",
			Help: "Total number of ASiC-S containers opened by result",
		},
		[]string{"result"}, // success, failure
	)

	// SignaturesCreatedTotal counts timestamp signatures added to containers
	SignaturesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goasics_signatures_created_total",
			Help: "Total number of signatures created by kind",
		},
		[]string{"kind"}, // initial, archive
	)

	// ContainersSavedTotal counts container saves by result
	ContainersSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goasics_containers_saved_total",
			Help: "Total number of ASiC-S containers saved by result",
		},
		[]string{"result"},
	)

	// TSARequestsTotal counts time-stamp authority requests by status
	TSARequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goasics_tsa_requests_total",
			Help: "Total number of time-stamp authority requests by status",
		},
		[]string{"status"}, // granted, rejected, error
	)

	// TSARequestDuration tracks time-stamp authority round trips in seconds
	TSARequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goasics_tsa_request_duration_seconds",
			Help:    "Time-stamp authority request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to 10s
		},
		[]string{"host"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, status code, and host
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goasics_http_requests_total",
			Help: "Total number of HTTP requests by method and status",
		},
		[]string{"method", "status_code", "host"},
	)

	// HTTPRequestDuration tracks HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goasics_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
		[]string{"method", "host"},
	)

	// CircuitBreakerState tracks circuit breaker state by host
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "goasics_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"host"},
	)

	// CircuitBreakerFailures counts circuit breaker failures
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goasics_circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"host"},
	)
)

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// GetCounterValue retrieves the current value of a counter metric with the given labels
// This is primarily intended for testing
func GetCounterValue(counter *prometheus.CounterVec, labels ...string) (float64, error) {
	metric, err := counter.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}

	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0, err
	}

	if pb.Counter != nil {
		return pb.Counter.GetValue(), nil
	}

	return 0, nil
}

// GetGaugeValue retrieves the current value of a gauge metric with the given labels
func GetGaugeValue(gauge *prometheus.GaugeVec, labels ...string) (float64, error) {
	metric, err := gauge.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}

	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0, err
	}

	if pb.Gauge != nil {
		return pb.Gauge.GetValue(), nil
	}

	return 0, nil
}
