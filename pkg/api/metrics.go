package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/replaykit/pkg/engine"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics of a decode process
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Decode metrics
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	entityOpsTotal  *prometheus.CounterVec
	fieldsDecoded   *prometheus.CounterVec
	liveEntities    *prometheus.GaugeVec

	// Runner metrics
	replaysTotal   *prometheus.CounterVec
	snapshotsTotal *prometheus.CounterVec
	replayTick     *prometheus.GaugeVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replaykit_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replaykit_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replaykit_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		messagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replaykit_messages_total",
				Help: "Total number of messages applied to an engine",
			},
			[]string{"kind", "status"},
		),

		messageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replaykit_message_duration_seconds",
				Help:    "Time spent applying one message",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"kind"},
		),

		entityOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replaykit_entity_ops_total",
				Help: "Entity creates, updates, leaves and deletes",
			},
			[]string{"op"},
		),

		fieldsDecoded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replaykit_fields_decoded_total",
				Help: "Total number of field values decoded",
			},
			[]string{"replay"},
		),

		liveEntities: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replaykit_live_entities",
				Help: "Live entities after the last entity message",
			},
			[]string{"replay"},
		),

		replaysTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replaykit_replays_total",
				Help: "Total number of finished replays",
			},
			[]string{"status"},
		),

		snapshotsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replaykit_snapshots_total",
				Help: "Total number of snapshots taken",
			},
			[]string{"status"},
		),

		replayTick: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "replaykit_replay_tick",
				Help: "Tick of the last message applied per replay",
			},
			[]string{"replay"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordReplay records a finished replay
func (m *Metrics) RecordReplay(success bool) {
	m.replaysTotal.WithLabelValues(status(success)).Inc()
}

// RecordSnapshot records a snapshot attempt
func (m *Metrics) RecordSnapshot(success bool) {
	m.snapshotsTotal.WithLabelValues(status(success)).Inc()
}

// RecordTick records replay progress
func (m *Metrics) RecordTick(replay string, tick uint32) {
	m.replayTick.WithLabelValues(replay).Set(float64(tick))
}

// Forget drops the per replay series of a finished replay
func (m *Metrics) Forget(replay string) {
	m.fieldsDecoded.DeleteLabelValues(replay)
	m.liveEntities.DeleteLabelValues(replay)
	m.replayTick.DeleteLabelValues(replay)
}

// Observer returns an engine observer reporting under replay
func (m *Metrics) Observer(replay string) engine.Observer {
	return &replayObserver{
		m:      m,
		fields: m.fieldsDecoded.WithLabelValues(replay),
		live:   m.liveEntities.WithLabelValues(replay),
	}
}

type replayObserver struct {
	m      *Metrics
	fields prometheus.Counter
	live   prometheus.Gauge
}

func (o *replayObserver) MessageApplied(kind engine.Kind, elapsed time.Duration, err error) {
	o.m.messagesTotal.WithLabelValues(kind.String(), status(err == nil)).Inc()
	o.m.messageDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

func (o *replayObserver) EntityChanged(op engine.Op) {
	o.m.entityOpsTotal.WithLabelValues(op.String()).Inc()
}

func (o *replayObserver) FieldsDecoded(n int) {
	o.fields.Add(float64(n))
}

func (o *replayObserver) LiveEntities(n int) {
	o.live.Set(float64(n))
}

func status(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
