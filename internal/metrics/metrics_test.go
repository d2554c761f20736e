package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegistryHandler(t *testing.T) {
	r := NewRegistry()
	r.Runs.WithLabelValues("completed").Inc()
	r.Orders.WithLabelValues("store").Add(3)
	r.Pages.Inc()

	require.Equal(t, 3.0, testutil.ToFloat64(r.Orders.WithLabelValues("store")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `orderexport_runs_total{state="completed"} 1`)
	require.Contains(t, string(body), "orderexport_pages_total 1")
}
