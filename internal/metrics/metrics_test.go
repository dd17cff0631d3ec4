package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-formkit/pkg/validation"
)

func TestObservations(t *testing.T) {
	m := New()
	m.ObserveResolution("employeeIDs", "profiles.all", 20*time.Millisecond, nil)
	m.ObserveResolution("employeeIDs", "profiles.all", time.Millisecond, errors.New("boom"))
	m.ObserveSubmit("tender.edit", time.Millisecond, nil)
	m.ObserveSubmit("tender.edit", time.Millisecond, &validation.ValidationError{Fields: map[string][]string{"title": {"Title is required"}}})
	m.SessionOpened()

	if got := testutil.ToFloat64(m.resolutions.WithLabelValues("profiles.all", "error")); got != 1 {
		t.Fatalf("expected one failed resolution, got %v", got)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues("tender.edit", "invalid")); got != 1 {
		t.Fatalf("expected one invalid submission, got %v", got)
	}
	if got := testutil.ToFloat64(m.liveSessions); got != 1 {
		t.Fatalf("expected one live session, got %v", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveSubmit("tender.edit", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `formkit_submissions_total{form="tender.edit",outcome="ok"} 1`) {
		t.Fatalf("metrics output missing submission counter:\n%s", body)
	}
}
