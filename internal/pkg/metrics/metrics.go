// Package metrics defines and registers all custom Prometheus metrics for
// LeadHub. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry at package
// init via promauto; the HTTP request metrics come from echoprometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

const namespace = "leadhub"

// ── Identity metrics ──────────────────────────────────────────────────────────

// IdentitySyncTotal counts IdentitySync resolutions.
// Label:
//   - result: "created" (first login), "existing", or "error"
var IdentitySyncTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_sync_total",
		Help:      "Total number of identity resolutions, by result.",
	},
	[]string{"result"},
)

// AuthFailuresTotal counts rejected requests and handshakes.
// Labels:
//   - surface: "http" or "realtime"
//   - reason: "no_token", "invalid_token", "expired_token", "provider_unavailable", "directory_unavailable", "forbidden"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of authentication and authorization failures.",
	},
	[]string{"surface", "reason"},
)

// TokenCacheTotal counts verified-claims cache lookups.
// Label:
//   - result: "hit", "miss", or "error"
var TokenCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_cache_total",
		Help:      "Total number of verified-claims cache lookups, labelled by result.",
	},
	[]string{"result"},
)

// ── Real-time metrics ─────────────────────────────────────────────────────────

// RealtimeConnections tracks the number of authenticated socket connections.
var RealtimeConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Current number of authenticated real-time connections.",
	},
)

// MessagesTotal counts sendMessage outcomes.
// Label:
//   - result: "delivered", "rejected" (validation), or "error" (store)
var MessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Total number of chat messages by outcome.",
	},
	[]string{"result"},
)

// BroadcastFanout observes how many connections received each broadcast.
// Label:
//   - event: "newMessage" or "typing"
var BroadcastFanout = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "broadcast_fanout",
		Help:      "Number of recipients per broadcast.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	},
	[]string{"event"},
)

// MessageQueueDepth tracks the number of sends waiting in each room worker.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MessageQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "message_queue_depth",
		Help:      "Current number of sends pending in each room worker channel.",
	},
	[]string{"worker_id"},
)

// SlowConsumerDisconnects counts connections dropped because their
// outbound buffer was full.
var SlowConsumerDisconnects = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slow_consumer_disconnects_total",
		Help:      "Total number of connections closed for not draining their send buffer.",
	},
)

// AuthFailureReason is the AuthFailuresTotal reason label for err.
func AuthFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoToken):
		return "no_token"
	case errors.Is(err, domain.ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, domain.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		return "directory_unavailable"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
