package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Recalculation("payment", OutcomeOK)
	m.Recalculation("payment", OutcomeOK)
	m.Recalculation("split_mode", OutcomeRejected)
	m.PaymentRecorded()
	m.Warning("ungrouped_traveler")
	m.Settlement(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recalculations.WithLabelValues("payment", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recalculations.WithLabelValues("split_mode", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.warnings.WithLabelValues("ungrouped_traveler")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.transfers))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Recalculation("payment", OutcomeOK)
		m.PaymentRecorded()
		m.Warning("x")
		m.Settlement(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.PaymentRecorded()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "tripsplit_payments_recorded_total 1"), body)
	assert.Contains(t, body, "go_goroutines")
}
