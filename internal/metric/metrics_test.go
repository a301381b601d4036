package metric

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.SessionCreated("zoo")
	m.SetActiveSessions(3)
	m.RecordEdit("zoo", nil)
	m.RecordEdit("zoo", errors.New("derived"))
	m.RecordValidation("zoo", false)
	m.RecordValidation("zoo", true)
	m.RecordValidation("zoo", true)
	m.RecordSubmission("zoo", "accepted")
	m.RecordSnapshot("save", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("zoo")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.edits.WithLabelValues("zoo", "rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.validations.WithLabelValues("zoo", "valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("zoo", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshots.WithLabelValues("save", "ok")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordEdit("ledger", nil)
	m.ObserveRequest("/forms/sessions", http.MethodPost, "201", 2*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `formengine_fields_edits_total{form="ledger",result="ok"} 1`)
	assert.Contains(t, body, "formengine_http_request_duration_seconds_bucket")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionCreated("zoo")
		m.SetActiveSessions(1)
		m.RecordEdit("zoo", nil)
		m.RecordValidation("zoo", true)
		m.RecordSubmission("zoo", "invalid")
		m.RecordSnapshot("restore", nil)
		m.ObserveRequest("/", http.MethodGet, "200", time.Millisecond)
	})
}
