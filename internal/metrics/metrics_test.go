package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.LineVerdict("commit", "ok", "")
	m.LineVerdict("commit", "ok", "")
	m.LineVerdict("commit", "rejected", "exceeds_available")
	m.TransferCommitted()
	m.Cancelled("line", 1)
	m.Cancelled("transfer", 3)
	m.Cancelled("transfer", 0)
	m.Conflict("commit")
	m.StockAdjusted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lineVerdicts.WithLabelValues("commit", "ok", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lineVerdicts.WithLabelValues("commit", "rejected", "exceeds_available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersCommitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellations.WithLabelValues("line")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cancellations.WithLabelValues("transfer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("commit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockAdjustments))
}

func TestMetrics_Histograms(t *testing.T) {
	m := New()

	m.ObserveOperation("commit", nil, 20*time.Millisecond)
	m.ObserveOperation("commit", errors.New("boom"), 5*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "POST /api/transfers", http.StatusCreated, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.operationDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "POST /api/transfers", "201")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LineVerdict("preview", "ok", "")
		m.TransferCommitted()
		m.Cancelled("line", 1)
		m.Conflict("cancel_line")
		m.ObserveOperation("commit", nil, time.Second)
		m.StockAdjusted()
		m.ObserveHTTP("GET", "/", 200, time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.TransferCommitted()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "prenos_transfers_committed_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
