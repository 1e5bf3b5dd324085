package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	return recorder.Body.String()
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Delete("/api/v1/students/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/v1/students/A001", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	body := scrape(t, m)
	want := `route="/api/v1/students/{id}",status="404"`
	if !strings.Contains(body, want) {
		t.Errorf("expected scrape to contain %s\n%s", want, body)
	}
	if strings.Contains(body, "A001") {
		t.Error("raw path leaked into labels")
	}
	if !strings.Contains(body, `route="unmatched"`) {
		t.Error("expected unmatched route label for unknown path")
	}
}

func TestMetrics_DefaultsStatusToOK(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v1/groups", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/groups", nil))

	if body := scrape(t, m); !strings.Contains(body, `status="200"`) {
		t.Errorf("expected status 200 label\n%s", body)
	}
}
