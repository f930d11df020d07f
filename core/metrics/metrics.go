package metrics

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ckeytools"

var (
	// LinkEvents counts reconciliation events by event and result.
	LinkEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_events_total",
			Help:      "Total number of link reconciliation events.",
		},
		[]string{"event", "result"},
	)

	// RoleOperations counts grant and revoke calls by result.
	RoleOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_operations_total",
			Help:      "Total number of role grant/revoke calls.",
		},
		[]string{"op", "result"},
	)

	// SessionTransitions counts verification session state changes.
	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Total number of verification session transitions.",
		},
		[]string{"state"},
	)

	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(LinkEvents, RoleOperations, SessionTransitions, httpReqs)
}

// Result maps an error to a bounded label value.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// Middleware counts requests by method, route and status.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		httpReqs.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		return err
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
