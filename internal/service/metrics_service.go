package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	bookingsCreated prometheus.Counter
	bookingErrors   *prometheus.CounterVec
	settlements     *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_hits_total",
		Help: "Total availability cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_misses_total",
		Help: "Total availability cache misses",
	})

	bookingsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total successfully created bookings",
	})

	bookingErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_rejections_total",
		Help: "Booking attempts rejected, by error code",
	}, []string{"code"})

	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_settlements_total",
		Help: "Terminal booking transitions, by outcome",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, bookingsCreated, bookingErrors, settlements, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		bookingsCreated: bookingsCreated,
		bookingErrors:   bookingErrors,
		settlements:     settlements,
	}
}

// RegisterQueueDepth exposes the notification dispatcher backlog as a gauge.
func (m *MetricsService) RegisterQueueDepth(depth func() int) {
	if m == nil || depth == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "notification_queue_depth",
		Help: "Jobs waiting in the notification queue",
	}, func() float64 {
		return float64(depth())
	}))
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup tracks availability cache effectiveness.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordBookingCreated counts a successful reservation.
func (m *MetricsService) RecordBookingCreated() {
	if m == nil {
		return
	}
	m.bookingsCreated.Inc()
}

// RecordBookingRejected counts a rejected reservation by error code.
func (m *MetricsService) RecordBookingRejected(code string) {
	if m == nil {
		return
	}
	m.bookingErrors.WithLabelValues(code).Inc()
}

// RecordSettlement counts a terminal booking transition.
func (m *MetricsService) RecordSettlement(status string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(status).Inc()
}
