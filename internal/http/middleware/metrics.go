package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests HTTP por método, ruta y status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "janus",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duración de los requests HTTP.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "janus",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Requests en vuelo.",
	})
)

// Metrics instrumenta cada request. La ruta se toma del patrón del router,
// no del path crudo, para no explotar la cardinalidad con codes.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := newStatusWriter(w)
		httpInflight.Inc()
		start := time.Now()
		next.ServeHTTP(sw, r)
		httpInflight.Dec()

		route := routePattern(r)
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
