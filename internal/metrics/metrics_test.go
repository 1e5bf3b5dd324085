package metrics

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Enrollment("ok")
	m.Recognition("ok", time.Second)
	m.Face(OutcomeUnknown, 0.7)
	m.Identities(3)
	m.HTTPRequest("/", "GET", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	m := New()

	m.Enrollment("ok")
	m.Enrollment("ok")
	m.Enrollment("no_face")
	if got := testutil.ToFloat64(m.enrollments.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected 2 ok enrollments, got %v", got)
	}

	m.Face(OutcomeRegistered, 0.2)
	m.Face(OutcomeUnknown, math.Inf(1))
	if got := testutil.ToFloat64(m.faces.WithLabelValues(OutcomeUnknown)); got != 1 {
		t.Errorf("expected 1 unknown face, got %v", got)
	}
	if got := testutil.CollectAndCount(m.matchDistance); got != 1 {
		t.Errorf("expected one histogram series, got %d", got)
	}

	m.Identities(5)
	if got := testutil.ToFloat64(m.identities); got != 5 {
		t.Errorf("expected identities gauge 5, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Recognition("ok", 50*time.Millisecond)
	m.HTTPRequest("/api/v1/health", http.MethodGet, "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"attendance_recognitions_total",
		"attendance_http_requests_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in output", want)
		}
	}
}
