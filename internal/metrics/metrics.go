// Package metrics exposes Prometheus collectors for the sync loop and ledger
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync outcome labels
const (
	ResultOK        = "ok"
	ResultFailed    = "failed"
	ResultDiscarded = "discarded"
)

// Metrics holds all Prometheus metrics for Aether. Each instance owns its
// registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	SyncTotal      *prometheus.CounterVec // labels: result
	SyncDuration   prometheus.Histogram
	CachedSymbols  prometheus.Gauge
	MissingSymbols prometheus.Counter
	CacheVersion   prometheus.Gauge

	LedgerTrades  prometheus.Gauge
	ViewsComputed prometheus.Counter
	StreamClients prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aether_market_sync_total",
			Help: "Market data sync cycles by result (ok, failed, discarded)",
		}, []string{"result"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aether_market_sync_duration_seconds",
			Help:    "Provider round-trip latency per sync cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		CachedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aether_market_cached_symbols",
			Help: "Symbols present in the current market data cache",
		}),
		MissingSymbols: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aether_market_missing_symbols_total",
			Help: "Requested symbols the provider did not return",
		}),
		CacheVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aether_market_cache_version",
			Help: "Generation number of the market data cache",
		}),

		LedgerTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aether_ledger_trades",
			Help: "Trades currently held in the ledger",
		}),
		ViewsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aether_portfolio_views_computed_total",
			Help: "Portfolio recomputations (holdings + stats)",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aether_stream_clients",
			Help: "Connected portfolio websocket clients",
		}),
	}

	m.registry.MustRegister(
		m.SyncTotal,
		m.SyncDuration,
		m.CachedSymbols,
		m.MissingSymbols,
		m.CacheVersion,
		m.LedgerTrades,
		m.ViewsComputed,
		m.StreamClients,
	)

	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSync records one sync cycle. Safe on a nil receiver.
func (m *Metrics) ObserveSync(result string, elapsed time.Duration, cached, missing int, version uint64) {
	if m == nil {
		return
	}
	m.SyncTotal.WithLabelValues(result).Inc()
	m.SyncDuration.Observe(elapsed.Seconds())
	if result == ResultOK {
		m.CachedSymbols.Set(float64(cached))
		m.MissingSymbols.Add(float64(missing))
		m.CacheVersion.Set(float64(version))
	}
}

// SetLedgerTrades records the ledger size. Safe on a nil receiver.
func (m *Metrics) SetLedgerTrades(n int) {
	if m == nil {
		return
	}
	m.LedgerTrades.Set(float64(n))
}

// IncViewsComputed counts a portfolio recomputation. Safe on a nil receiver.
func (m *Metrics) IncViewsComputed() {
	if m == nil {
		return
	}
	m.ViewsComputed.Inc()
}

// AddStreamClients adjusts the connected stream client gauge. Safe on a nil receiver.
func (m *Metrics) AddStreamClients(delta int) {
	if m == nil {
		return
	}
	m.StreamClients.Add(float64(delta))
}
