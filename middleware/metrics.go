package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		},
		[]string{"source"},
	)

	paymentCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Total number of payment provider callbacks by outcome",
		},
		[]string{"result"},
	)

	paymentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_requests_total",
			Help: "Total number of outbound payment creation attempts",
		},
		[]string{"status"},
	)

	adminStatusOverridesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_status_overrides_total",
			Help: "Total number of order status overrides applied by admins",
		},
		[]string{"from", "to"},
	)

	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of customer notifications sent",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(paymentCallbacksTotal)
	prometheus.MustRegister(paymentRequestsTotal)
	prometheus.MustRegister(adminStatusOverridesTotal)
	prometheus.MustRegister(notificationsSentTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderCreated(source string) {
	ordersCreatedTotal.WithLabelValues(source).Inc()
}

func RecordPaymentCallback(result string) {
	paymentCallbacksTotal.WithLabelValues(result).Inc()
}

func RecordPaymentRequest(status string) {
	paymentRequestsTotal.WithLabelValues(status).Inc()
}

func RecordStatusOverride(from, to string) {
	adminStatusOverridesTotal.WithLabelValues(from, to).Inc()
}

func RecordNotificationSent(notificationType string) {
	notificationsSentTotal.WithLabelValues(notificationType).Inc()
}
