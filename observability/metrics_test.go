package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsHandler(t *testing.T) {
	ContainersOpenedTotal.WithLabelValues("success").Inc()
	SignaturesCreatedTotal.WithLabelValues("initial").Inc()
	TSARequestsTotal.WithLabelValues("granted").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler := MetricsHandler()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Errorf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"goasics_containers_opened_total",
		"goasics_signatures_created_total",
		"goasics_tsa_requests_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestMetricDefinitions(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"ContainersOpenedTotal", func() { ContainersOpenedTotal.WithLabelValues("failure").Inc() }},
		{"SignaturesCreatedTotal", func() { SignaturesCreatedTotal.WithLabelValues("archive").Inc() }},
		{"ContainersSavedTotal", func() { ContainersSavedTotal.WithLabelValues("success").Inc() }},
		{"TSARequestsTotal", func() { TSARequestsTotal.WithLabelValues("rejected").Inc() }},
		{"TSARequestDuration", func() { TSARequestDuration.WithLabelValues("tsa.example.com").Observe(0.25) }},
		{"HTTPRequestsTotal", func() { HTTPRequestsTotal.WithLabelValues("POST", "200", "tsa.example.com").Inc() }},
		{"HTTPRequestDuration", func() { HTTPRequestDuration.WithLabelValues("POST", "tsa.example.com").Observe(0.5) }},
		{"CircuitBreakerState", func() { CircuitBreakerState.WithLabelValues("tsa.example.com").Set(1) }},
		{"CircuitBreakerFailures", func() { CircuitBreakerFailures.WithLabelValues("tsa.example.com").Inc() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("%s panicked: %v", tt.name, r)
				}
			}()
			tt.fn()
		})
	}
}

func TestGetCounterValue(t *testing.T) {
	before, err := GetCounterValue(SignaturesCreatedTotal, "initial")
	if err != nil {
		t.Fatalf("GetCounterValue() failed: %v", err)
	}

	SignaturesCreatedTotal.WithLabelValues("initial").Inc()
	SignaturesCreatedTotal.WithLabelValues("initial").Inc()

	after, err := GetCounterValue(SignaturesCreatedTotal, "initial")
	if err != nil {
		t.Fatalf("GetCounterValue() failed: %v", err)
	}
	if after-before != 2 {
		t.Errorf("counter delta = %v, want 2", after-before)
	}
}

func TestGetCounterValue_WrongLabelCount(t *testing.T) {
	if _, err := GetCounterValue(HTTPRequestsTotal, "POST"); err == nil {
		t.Error("expected error for wrong label cardinality")
	}
}

func TestGetGaugeValue(t *testing.T) {
	CircuitBreakerState.WithLabelValues("gauge.example.com").Set(2)

	v, err := GetGaugeValue(CircuitBreakerState, "gauge.example.com")
	if err != nil {
		t.Fatalf("GetGaugeValue() failed: %v", err)
	}
	if v != 2 {
		t.Errorf("gauge = %v, want 2", v)
	}
}
