package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Runs          *prometheus.CounterVec
	Orders        *prometheus.CounterVec
	DetailFetches *prometheus.CounterVec
	Pages         prometheus.Counter
	RunSeconds    prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderexport_runs_total",
		Help: "Finished export runs by final state.",
	}, []string{"state"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderexport_orders_total",
		Help: "Orders kept in an export by order type.",
	}, []string{"type"})
	detailFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderexport_detail_fetches_total",
		Help: "Per-order detail lookups by result.",
	}, []string{"result"})
	pages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderexport_pages_total",
		Help: "Order list pages walked.",
	})
	runSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderexport_run_duration_seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	r.MustRegister(runs, orders, detailFetches, pages, runSeconds)
	return &Registry{
		reg:           r,
		Runs:          runs,
		Orders:        orders,
		DetailFetches: detailFetches,
		Pages:         pages,
		RunSeconds:    runSeconds,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
