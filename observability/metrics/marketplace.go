package metrics

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics tracks execution outcomes of the settlement core.
type MarketplaceMetrics struct {
	operations     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	settlements    *prometheus.CounterVec
	settledVolume  *prometheus.CounterVec
	replies        *prometheus.CounterVec
	hookDeliveries *prometheus.CounterVec
}

var (
	marketplaceOnce     sync.Once
	marketplaceRegistry *MarketplaceMetrics
)

// Marketplace returns the lazily registered marketplace collectors.
func Marketplace() *MarketplaceMetrics {
	marketplaceOnce.Do(func() {
		marketplaceRegistry = &MarketplaceMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Executed marketplace operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of marketplace operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "engine",
				Name:      "settlements_total",
				Help:      "Finalized sales segmented by price denomination.",
			}, []string{"denom"}),
			settledVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "engine",
				Name:      "settled_volume",
				Help:      "Sum of settled sale prices in base units, segmented by denomination.",
			}, []string{"denom"}),
			replies: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "engine",
				Name:      "transfer_replies_total",
				Help:      "Transfer confirmations handled by the settlement engine segmented by result.",
			}, []string{"result"}),
			hookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "hooks",
				Name:      "deliveries_total",
				Help:      "Hook notification attempts segmented by hook kind and outcome.",
			}, []string{"kind", "outcome"}),
		}
		prometheus.MustRegister(
			marketplaceRegistry.operations,
			marketplaceRegistry.latency,
			marketplaceRegistry.settlements,
			marketplaceRegistry.settledVolume,
			marketplaceRegistry.replies,
			marketplaceRegistry.hookDeliveries,
		)
	})
	return marketplaceRegistry
}

func label(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

// ObserveOperation records one executed operation. Outcome is "success" or
// the error category reported by the engine.
func (m *MarketplaceMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	op := label(operation, "unknown")
	m.operations.WithLabelValues(op, label(outcome, "success")).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveSettlement records a finalized sale.
func (m *MarketplaceMetrics) ObserveSettlement(denom string, amount *big.Int) {
	if m == nil {
		return
	}
	d := label(denom, "unknown")
	m.settlements.WithLabelValues(d).Inc()
	if amount != nil && amount.Sign() > 0 {
		value, _ := new(big.Float).SetInt(amount).Float64()
		m.settledVolume.WithLabelValues(d).Add(value)
	}
}

// ObserveReply records the result of a tagged transfer confirmation.
func (m *MarketplaceMetrics) ObserveReply(result string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(label(result, "unknown")).Inc()
}

// ObserveHookDelivery records a hook notification attempt.
func (m *MarketplaceMetrics) ObserveHookDelivery(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.hookDeliveries.WithLabelValues(label(kind, "unknown"), outcome).Inc()
}
