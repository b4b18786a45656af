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

	m.Search("serper", nil)
	m.Search("serper", errors.New("out of credit"))
	m.Fetch("ok")
	m.Fetch("ok")
	m.Fetch("bypass")
	m.CacheHits(3)
	m.CacheHits(0)
	m.BlacklistAdds(2)
	m.Summary(nil)
	m.Forecast(nil)
	m.BatchItem(errors.New("x"))
	m.Stage("fetch", 250*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.searches.WithLabelValues("serper", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.searches.WithLabelValues("serper", "error")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.fetches.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.fetches.WithLabelValues("bypass")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.cacheHits), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.blacklistAdds), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.batchItems.WithLabelValues("error")), 0)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Search("serper", nil)
		m.Fetch("ok")
		m.CacheHits(1)
		m.BlacklistAdds(1)
		m.Summary(nil)
		m.Stage("search", time.Second)
		m.Forecast(nil)
		m.BatchItem(nil)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Forecast(nil)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `forecast_forecasts_total{outcome="ok"} 1`)
}
