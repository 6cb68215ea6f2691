// Package prometheus exports store metrics to Prometheus.
//
//	obs := prometheus.NewObserver(prom.DefaultRegisterer)
//	db, _ := latchkv.Open(ctx, latchkv.WithMetricsObserver(obs))
//	http.Handle("/metrics", promhttp.Handler())
package prometheus

import (
	"time"

	"github.com/hupe1980/latchkv"
	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "latchkv"

// Observer implements latchkv.MetricsObserver with Prometheus collectors.
type Observer struct {
	opLatency   *prom.HistogramVec
	updates     *prom.CounterVec
	pending     *prom.CounterVec
	checkpoints *prom.CounterVec
	ckptLatency prom.Histogram
	flushes     prom.Counter
	flushBytes  prom.Counter
	evictions   prom.Counter
}

var _ latchkv.MetricsObserver = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewObserver(reg prom.Registerer) *Observer {
	o := &Observer{
		opLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations, including time spent pending.",
			Buckets:   prom.ExponentialBuckets(1e-7, 4, 12),
		}, []string{"op", "status"}),
		updates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Successful writes by operation and update mode.",
		}, []string{"op", "mode"}),
		pending: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pending_total",
			Help:      "Times an operation went pending.",
		}, []string{"op"}),
		checkpoints: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoint attempts by result.",
		}, []string{"result"}),
		ckptLatency: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_duration_seconds",
			Help:      "Duration of checkpoints.",
			Buckets:   prom.DefBuckets,
		}),
		flushes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "log_flushes_total",
			Help:      "Log ranges written to the device.",
		}),
		flushBytes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "log_flushed_bytes_total",
			Help:      "Bytes written to the device by the log.",
		}),
		evictions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "log_pages_evicted_total",
			Help:      "Pages that left memory.",
		}),
	}
	if reg != nil {
		reg.MustRegister(o.opLatency, o.updates, o.pending, o.checkpoints,
			o.ckptLatency, o.flushes, o.flushBytes, o.evictions)
	}
	return o
}

func (o *Observer) RecordOperation(kind latchkv.OpKind, status latchkv.Status, d time.Duration) {
	o.opLatency.WithLabelValues(kind.String(), status.String()).Observe(d.Seconds())
}

func (o *Observer) RecordUpdate(kind latchkv.OpKind, inPlace bool) {
	mode := "append"
	if inPlace {
		mode = "in_place"
	}
	o.updates.WithLabelValues(kind.String(), mode).Inc()
}

func (o *Observer) RecordPending(kind latchkv.OpKind) {
	o.pending.WithLabelValues(kind.String()).Inc()
}

func (o *Observer) RecordCheckpoint(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	o.checkpoints.WithLabelValues(result).Inc()
	o.ckptLatency.Observe(d.Seconds())
}

func (o *Observer) RecordFlush(bytes int, _ time.Duration) {
	o.flushes.Inc()
	o.flushBytes.Add(float64(bytes))
}

func (o *Observer) RecordPageEvicted() {
	o.evictions.Inc()
}
