package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Post("/v1/dose", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/dose", nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", rr.Code)
	}

	body := scrape(t)
	want := `http_request_total{method="POST",path="/v1/dose",status="422"}`
	if !strings.Contains(body, want) {
		t.Errorf("Expected %s in scrape output", want)
	}
	if !strings.Contains(body, `http_request_duration_seconds_count{method="POST",path="/v1/dose"}`) {
		t.Error("Expected a duration sample for /v1/dose")
	}
}

func TestMetricsMiddlewareWithoutRouter(t *testing.T) {
	h := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/anything/123", nil))

	body := scrape(t)
	if !strings.Contains(body, `http_request_total{method="GET",path="unmatched",status="200"}`) {
		t.Error("Expected unrouted requests to share the unmatched label")
	}
}

func TestEngineMetrics(t *testing.T) {
	ObserveDose(7.5, false)
	ObserveDose(5, true)
	ObserveRisk(SourceAnalyze, "emergency")
	ObserveRisk(SourceQuickCheck, "safe")
	ObserveRiskRejected(SourceAnalyze, OutcomeInvalid)
	SetKnowledgeBase("ispad-2024.1", "abc123")
	SetKnowledgeBase("ispad-2024.2", "def456")
	SetDrift(true)

	body := scrape(t)

	tests := []string{
		`dose_calculations_total{outcome="ok"}`,
		`dose_cap_clamped_total 1`,
		`dose_total_units_count`,
		`risk_assessments_total{source="analyze",tier="emergency"} 1`,
		`risk_assessments_total{source="quick_check",tier="safe"} 1`,
		`risk_requests_rejected_total{outcome="invalid_parameter",source="analyze"} 1`,
		`knowledge_base_info{checksum="def456",version="ispad-2024.2"} 1`,
		`knowledge_base_drift 1`,
	}
	for _, want := range tests {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in scrape output", want)
		}
	}

	if strings.Contains(body, `version="ispad-2024.1"`) {
		t.Error("Expected the previous knowledge base version to be cleared")
	}

	SetDrift(false)
	if !strings.Contains(scrape(t), "knowledge_base_drift 0") {
		t.Error("Expected drift gauge to reset")
	}
}
