package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

/* ========================================================================
 * Prometheus Metrics
 * ========================================================================
 * Registration and exposure of the service's metrics. Domain counters
 * live here so handlers and middleware share one registry.
 * ======================================================================== */

var (
	// HTTPRequestDuration measures request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "manager",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestTotal counts requests.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manager",
			Subsystem: "http",
			Name:      "request_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ScopeResolutions counts tenant scope resolutions by source
	// (host, root, session, none, rejected).
	ScopeResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manager",
			Subsystem: "tenant",
			Name:      "scope_resolutions_total",
			Help:      "Tenant scope resolutions by binding source",
		},
		[]string{"source"},
	)

	// AccessDenials counts policy rejections.
	AccessDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manager",
			Subsystem: "authz",
			Name:      "access_denials_total",
			Help:      "Requests rejected by the access policy",
		},
		[]string{"entity", "action"},
	)

	// PurgedRows counts tombstones removed by the purge job.
	PurgedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manager",
			Subsystem: "purge",
			Name:      "rows_total",
			Help:      "Soft-deleted rows permanently removed",
		},
		[]string{"table"},
	)

	// DBQueryDuration measures repository query latency.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "manager",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)
)

// RegisterMetricsEndpoint exposes /metrics on app.
func RegisterMetricsEndpoint(app *fiber.App) {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c fiber.Ctx) error {
		handler(c.RequestCtx())
		return nil
	})
}

// HTTPMiddleware records duration and count per route.
func HTTPMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		path := c.Route().Path
		labels := []string{c.Method(), path, strconv.Itoa(status)}
		HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		HTTPRequestTotal.WithLabelValues(labels...).Inc()
		return err
	}
}
