package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics aggregates the Prometheus collectors for the sale engine and
// its HTTP gateway.
type SaleMetrics struct {
	purchases        prometheus.Counter
	purchaseFailures *prometheus.CounterVec
	raisedTotal      prometheus.Counter
	soldTotal        prometheus.Counter
	paused           prometheus.Gauge
	requestDuration  *prometheus.HistogramVec
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

// Sale returns the process-wide sale metrics, registering them on first use.
func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			purchases: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_purchases_total",
				Help: "Count of settled purchases.",
			}),
			purchaseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchase_failures_total",
				Help: "Count of rejected purchases by reason.",
			}, []string{"reason"}),
			raisedTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_raised_base_units_total",
				Help: "Cumulative base currency raised across settled purchases.",
			}),
			soldTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_sold_asset_units_total",
				Help: "Cumulative asset released across settled purchases.",
			}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sale_paused",
				Help: "Whether the sale is currently paused (1) or active (0).",
			}),
			requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "sale_gateway_request_seconds",
				Help:    "Gateway request latency by route and status.",
				Buckets: prometheus.DefBuckets,
			}, []string{"route", "status"}),
		}
		prometheus.MustRegister(
			saleRegistry.purchases,
			saleRegistry.purchaseFailures,
			saleRegistry.raisedTotal,
			saleRegistry.soldTotal,
			saleRegistry.paused,
			saleRegistry.requestDuration,
		)
	})
	return saleRegistry
}

// RecordPurchase registers a settled buy.
func (m *SaleMetrics) RecordPurchase(paymentIn, assetOut uint64) {
	if m == nil {
		return
	}
	m.purchases.Inc()
	m.raisedTotal.Add(float64(paymentIn))
	m.soldTotal.Add(float64(assetOut))
}

// RecordPurchaseFailure registers a rejected buy by reason label.
func (m *SaleMetrics) RecordPurchaseFailure(reason string) {
	if m == nil {
		return
	}
	m.purchaseFailures.WithLabelValues(reason).Inc()
}

// SetPaused mirrors the engine pause flag.
func (m *SaleMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

// ObserveRequest records a gateway request latency sample.
func (m *SaleMetrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, status).Observe(seconds)
}
