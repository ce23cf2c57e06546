package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "player_sync"

// Metrics 是锁协调相关的指标。所有方法对 nil 接收者是 no-op，测试里可以直接传 nil。
type Metrics struct {
	Registry *prometheus.Registry

	AcquireTotal       *prometheus.CounterVec // result=store|cache|unavailable|cancelled|error
	ReleaseTotal       *prometheus.CounterVec // result=success|fail
	FlushTotal         *prometheus.CounterVec // result=success|fail|skipped
	RetryTotal         prometheus.Counter
	CachePollTotal     *prometheus.CounterVec // result=hit|miss|error
	StaleLockSuspected prometheus.Counter
	SessionsActive     prometheus.Gauge
	OpLatencyMS        *prometheus.HistogramVec // op=get|update|set_lock|cache_put|cache_take
}

// New 用独立 registry 注册，同一进程里可以建多份（测试里两个协调器）。
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		AcquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquire_total",
			Help:      "Total acquisitions by result",
		}, []string{"result"}),
		ReleaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "release_total",
			Help:      "Total releases by result",
		}, []string{"result"}),
		FlushTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_total",
			Help:      "Total periodic flushes by result",
		}, []string{"result"}),
		RetryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_retry_total",
			Help:      "Total store reads retried because the record was locked",
		}),
		CachePollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_poll_total",
			Help:      "Fast cache polls by result",
		}, []string{"result"}),
		StaleLockSuspected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_lock_suspected_total",
			Help:      "Contended reads that found a lock older than the stale threshold",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently owned by this process",
		}),
		OpLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "op_latency_ms",
			Help:      "Latency of store/cache operations (ms)",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"op"}),
	}

	m.Registry.MustRegister(
		m.AcquireTotal,
		m.ReleaseTotal,
		m.FlushTotal,
		m.RetryTotal,
		m.CachePollTotal,
		m.StaleLockSuspected,
		m.SessionsActive,
		m.OpLatencyMS,
	)
	return m
}

func (m *Metrics) Acquire(result string) {
	if m == nil {
		return
	}
	m.AcquireTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Release(ok bool) {
	if m == nil {
		return
	}
	m.ReleaseTotal.WithLabelValues(okLabel(ok)).Inc()
}

func (m *Metrics) Flush(result string) {
	if m == nil {
		return
	}
	m.FlushTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.RetryTotal.Inc()
}

func (m *Metrics) CachePoll(result string) {
	if m == nil {
		return
	}
	m.CachePollTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) StaleLock() {
	if m == nil {
		return
	}
	m.StaleLockSuspected.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// Observe 记录一次 I/O 的耗时，用法：defer m.Observe("get", time.Now())
func (m *Metrics) Observe(op string, begin time.Time) {
	if m == nil {
		return
	}
	m.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(begin).Microseconds()) / 1000)
}

func okLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "fail"
}
