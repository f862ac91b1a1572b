package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis failures by operation so cache and rate limit
	// degradation is visible before users notice.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_redis_errors_total",
		Help: "Total number of Redis errors by operation",
	}, []string{"operation"})

	// ActiveWebSockets is the gauge of currently connected notification clients.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// NotificationsCreated counts notifications written, labelled by kind.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_notifications_created_total",
		Help: "Total number of notifications created by kind",
	}, []string{"kind"})

	// NotificationDrops counts realtime deliveries dropped due to backpressure.
	NotificationDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_notification_drops_total",
		Help: "Total number of realtime notification messages dropped",
	}, []string{"reason"})
)

// InitMetrics creates the Prometheus middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware adapts the Prometheus middleware into a fiber.Handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
