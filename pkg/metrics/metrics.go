package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiorooms_joins_total",
		Help: "Participants registered into a room session.",
	})
	LeavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiorooms_leaves_total",
		Help: "Explicit leave-room departures.",
	})
	DisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiorooms_disconnects_total",
		Help: "Departures detected from a transport disconnect.",
	})
	SignalsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiorooms_signals_relayed_total",
		Help: "WebRTC signaling messages forwarded to their target.",
	})
	SignalsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiorooms_signals_dropped_total",
		Help: "Signaling messages dropped because the target already left.",
	})
	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiorooms_notify_failures_total",
		Help: "Failed publishes to the external messaging channel.",
	})
)

// Handler exposes the prometheus registry, mounted at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
