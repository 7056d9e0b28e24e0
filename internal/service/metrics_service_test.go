package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/cases/:id", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/cases/:id", http.StatusNotFound, 40*time.Millisecond)
	m.ObserveDBQuery("cases_find", 4*time.Millisecond)
	m.RecordCaseWrite("create")
	m.RecordCaseWrite("update")
	m.RecordCommentWrite("add")
	m.ObserveScore(8)

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.RequestsTotal)
	assert.InDelta(t, 30, s.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), s.DBQueryCount)
	assert.InDelta(t, 4, s.AverageDBQueryDurationMs, 0.001)
	assert.Equal(t, uint64(2), s.CaseWrites)
	assert.Equal(t, uint64(1), s.CommentWrites)
	assert.Positive(t, s.Goroutines)
}

func TestMetricsServiceHandlerExposesCaseCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordCaseWrite("delete")
	m.ObserveScore(3)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `intervention_case_writes_total{operation="delete"} 1`)
	assert.Contains(t, body, "intervention_case_score_count 1")
}

func TestMetricsServiceNilReceiver(t *testing.T) {
	var m *MetricsService
	m.RecordCaseWrite("create")
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	assert.Equal(t, uint64(0), m.Snapshot().RequestsTotal)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
