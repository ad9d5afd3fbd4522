package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medstore/m/domain"
)

// Metrics holds the store's Prometheus collectors on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	SalesTotal   prometheus.Counter
	RevenueTotal prometheus.Counter
	UnitsSold    prometheus.Counter
	CartErrors   *prometheus.CounterVec
	CatalogSize  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SalesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medstore",
			Name:      "sales_committed_total",
			Help:      "Number of committed sales.",
		}),
		RevenueTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medstore",
			Name:      "revenue_total",
			Help:      "Sum of committed sale totals.",
		}),
		UnitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medstore",
			Name:      "units_sold_total",
			Help:      "Units deducted from stock by committed sales.",
		}),
		CartErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medstore",
			Name:      "cart_errors_total",
			Help:      "Rejected cart operations by error kind.",
		}, []string{"kind"}),
		CatalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "medstore",
			Name:      "catalog_size",
			Help:      "Number of medicines in the catalog.",
		}),
	}
	m.registry.MustRegister(m.SalesTotal, m.RevenueTotal, m.UnitsSold, m.CartErrors, m.CatalogSize)
	return m
}

// ObserveSale records a committed sale.
func (m *Metrics) ObserveSale(s domain.Sale) {
	m.SalesTotal.Inc()
	m.RevenueTotal.Add(s.Total)
	m.UnitsSold.Add(float64(s.Quantity()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
