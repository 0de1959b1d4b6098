package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "timebank"

// Recorder собирает метрики HTTP слоя и бизнес-операций в собственном реестре.
type Recorder struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	transitions   *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	transferHours *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

// New создаёт Recorder и регистрирует коллекторы.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listings",
			Name:      "transitions_total",
			Help:      "Listing state transitions by name and outcome code.",
		}, []string{"transition", "outcome"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Committed-or-attempted ledger transfers by kind.",
		}, []string{"kind"}),
		transferHours: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transferred_hours_total",
			Help:      "Hours moved between balances by kind.",
		}, []string{"kind"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by method and outcome code.",
		}, []string{"method", "outcome"}),
	}

	r.registry.MustRegister(
		r.httpInFlight,
		r.httpRequests,
		r.httpDuration,
		r.transitions,
		r.transfers,
		r.transferHours,
		r.logins,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return r
}

// Handler отдаёт метрики в формате Prometheus.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware считает запросы по шаблону маршрута, а не по сырому пути.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		r.httpInFlight.Inc()
		defer r.httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Transition учитывает попытку перехода объявления.
func (r *Recorder) Transition(name, outcome string) {
	r.transitions.WithLabelValues(name, outcome).Inc()
}

// Transfer учитывает перевод часов.
func (r *Recorder) Transfer(kind string, hours float64) {
	r.transfers.WithLabelValues(kind).Inc()
	r.transferHours.WithLabelValues(kind).Add(hours)
}

// Login учитывает попытку входа.
func (r *Recorder) Login(method, outcome string) {
	r.logins.WithLabelValues(method, outcome).Inc()
}
