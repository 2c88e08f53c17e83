package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

// Collector owns a private registry so tests can build as many as they need.
type Collector struct {
	registry         *prometheus.Registry
	transfers        *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	cardsExpired     prometheus.Counter
	blockRequests    *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcards_transfers_total",
			Help: "Transfers by final outcome",
		}, []string{"outcome"}),
		transferDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bankcards_transfer_duration_seconds",
			Help:    "Time from request to final outcome of a transfer",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		cardsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankcards_cards_expired_total",
			Help: "Cards moved to EXPIRED by the expiry sweep",
		}),
		blockRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcards_block_requests_total",
			Help: "Block requests by event",
		}, []string{"event"}),
	}
}

func (c *Collector) RecordTransfer(outcome domain.TransferState, elapsed time.Duration) {
	c.transfers.WithLabelValues(string(outcome)).Inc()
	c.transferDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

func (c *Collector) RecordCardsExpired(n int64) {
	if n > 0 {
		c.cardsExpired.Add(float64(n))
	}
}

// RecordBlockRequest counts "created" and "processed" events.
func (c *Collector) RecordBlockRequest(event string) {
	c.blockRequests.WithLabelValues(event).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
