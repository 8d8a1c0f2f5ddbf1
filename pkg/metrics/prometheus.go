package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	ticksAccepted *prometheus.CounterVec
	rowsFlushed   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	messagesSent  *prometheus.CounterVec
	batchSize     *prometheus.GaugeVec
	inFlight      prometheus.Gauge
	flushDuration *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_ticks_accepted_total",
				Help: "Total ticks accepted into batches",
			},
			[]string{"symbol"},
		),
		rowsFlushed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_rows_flushed_total",
				Help: "Total rows written to warehouse tables",
			},
			[]string{"table", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_messages_sent_total",
				Help: "Total number of messages sent to a backend",
			},
			[]string{"backend", "symbol"},
		),
		batchSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_batch_size",
				Help: "Current buffered batch size per symbol",
			},
			[]string{"symbol"},
		),
		inFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockpulse_inflight_loads",
				Help: "Number of flushes currently holding a load slot",
			},
		),
		flushDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_flush_duration_seconds",
				Help:    "Duration of batch flushes in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
	}
}

func (r *Recorder) RecordTickAccepted(symbol string) {
	r.ticksAccepted.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordBatchFlushed(table, symbol string, rows int) {
	r.rowsFlushed.WithLabelValues(table, symbol).Add(float64(rows))
}

func (r *Recorder) RecordFlushDuration(symbol string, seconds float64) {
	r.flushDuration.WithLabelValues(symbol).Observe(seconds)
}

func (r *Recorder) RecordBatchSize(symbol string, n int) {
	r.batchSize.WithLabelValues(symbol).Set(float64(n))
}

func (r *Recorder) RecordInFlightLoads(n int) {
	r.inFlight.Set(float64(n))
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}
