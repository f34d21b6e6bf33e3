package observability

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type marketMetrics struct {
	mints      prometheus.Counter
	transfers  prometheus.Counter
	sales      prometheus.Counter
	saleVolume prometheus.Counter
	cancels    prometheus.Counter
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	marketMetricsOnce sync.Once
	marketRegistry    *marketMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// JSON-RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module, method, and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// Market returns the registry tracking registry and marketplace activity.
func Market() *marketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &marketMetrics{
			mints: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "mints_total",
				Help:      "Count of tokens minted into the collection.",
			}),
			transfers: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "transfers_total",
				Help:      "Count of ownership transfers outside of sales.",
			}),
			sales: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "sales_total",
				Help:      "Count of completed fixed-price sales.",
			}),
			saleVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "sale_volume_total",
				Help:      "Cumulative sale volume in integer price units.",
			}),
			cancels: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "listing_cancellations_total",
				Help:      "Count of listings cancelled by their sellers.",
			}),
		}
		prometheus.MustRegister(
			marketRegistry.mints,
			marketRegistry.transfers,
			marketRegistry.sales,
			marketRegistry.saleVolume,
			marketRegistry.cancels,
		)
	})
	return marketRegistry
}

// RecordMint increments the mint counter.
func (m *marketMetrics) RecordMint() {
	if m == nil {
		return
	}
	m.mints.Inc()
}

// RecordTransfer increments the plain-transfer counter.
func (m *marketMetrics) RecordTransfer() {
	if m == nil {
		return
	}
	m.transfers.Inc()
}

// RecordSale increments the sale counter and adds the sale price to the
// cumulative volume counter.
func (m *marketMetrics) RecordSale(price *big.Int) {
	if m == nil {
		return
	}
	m.sales.Inc()
	m.saleVolume.Add(bigToFloat(price))
}

// RecordCancel increments the listing cancellation counter.
func (m *marketMetrics) RecordCancel() {
	if m == nil {
		return
	}
	m.cancels.Inc()
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, _ := new(big.Float).SetInt(value).Float64()
	if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return 0
	}
	return floatVal
}
