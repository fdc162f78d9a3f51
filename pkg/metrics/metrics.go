package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// push results
const (
	PushDelivered = "delivered"
	PushAbsent    = "absent"
	PushFailed    = "failed"
	PushRelayed   = "relayed"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Delivery metrics
	MessagesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_dispatched_total",
			Help: "Messages durably stored by dispatch",
		},
	)

	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_dispatch_failures_total",
			Help: "Dispatch calls rejected before or during persistence",
		},
		[]string{"reason"}, // "validation" or "store"
	)

	PushResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_push_total",
			Help: "Realtime push attempts by result",
		},
		[]string{"result"},
	)

	LegacyRelays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_legacy_relay_total",
			Help: "Raw client relay events forwarded",
		},
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_marked_read_total",
			Help: "Messages transitioned to read",
		},
	)

	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_notification_failures_total",
			Help: "Best-effort message notifications that failed",
		},
	)

	// Presence metrics
	ConnectedChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connected_channels",
			Help: "Channels currently registered in the local presence router",
		},
	)
)

// Middleware records request count and latency, path uses the route pattern
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		HTTPRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(c.Response().StatusCode())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
