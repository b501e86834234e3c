package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zkcred/zkcred/common/log"
)

// Operations observed by a Recorder.
const (
	OpCompile = "compile"
	OpProve   = "prove"
	OpVerify  = "verify"
)

var (
	// PrivateMetrics about the internal world (go process, protocol operations)
	PrivateMetrics = prometheus.NewRegistry()

	defaultRecorder *Recorder
	defaultOnce     sync.Once
)

// Recorder holds the protocol collectors. Values never carry credential data,
// only operation names, request types and outcomes.
type Recorder struct {
	// Operations (Private) how many compile, prove and verify calls, by outcome
	Operations *prometheus.CounterVec
	// Duration (Private) how long each operation took
	Duration *prometheus.HistogramVec
	// CacheHits (Private) precompile calls served from a compile cache
	CacheHits prometheus.Counter
	// CacheMisses (Private) precompile calls that compiled
	CacheMisses prometheus.Counter
}

// NewRecorder creates the collectors and registers them with r.
func NewRecorder(r prometheus.Registerer) (*Recorder, error) {
	rec := &Recorder{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presentation_operations_total",
			Help: "Number of protocol operations, by operation, request type and result",
		}, []string{"op", "request_type", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "presentation_operation_duration_seconds",
			Help:    "Histogram of protocol operation durations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compile_cache_hits_total",
			Help: "Number of precompiles served from a compile cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compile_cache_misses_total",
			Help: "Number of precompiles that had to compile",
		}),
	}
	for _, c := range []prometheus.Collector{rec.Operations, rec.Duration, rec.CacheHits, rec.CacheMisses} {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Default returns the recorder bound to PrivateMetrics, along with the go
// and process collectors.
func Default() *Recorder {
	defaultOnce.Do(func() {
		l := log.DefaultLogger().Named("metrics")
		if err := PrivateMetrics.Register(collectors.NewGoCollector()); err != nil {
			l.Errorw("error in bindMetrics", "metrics", "goCollector", "err", err)
		}
		if err := PrivateMetrics.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			l.Errorw("error in bindMetrics", "metrics", "processCollector", "err", err)
		}
		rec, err := NewRecorder(PrivateMetrics)
		if err != nil {
			l.Errorw("error in bindMetrics", "metrics", "recorder", "err", err)
			rec, _ = NewRecorder(prometheus.NewRegistry())
		}
		defaultRecorder = rec
	})
	return defaultRecorder
}

// Observe records the outcome and duration of an operation. A nil recorder
// records nothing.
func (r *Recorder) Observe(op, requestType string, took time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Operations.WithLabelValues(op, requestType, result).Inc()
	r.Duration.WithLabelValues(op).Observe(took.Seconds())
}

// Cache records a compile cache lookup.
func (r *Recorder) Cache(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheHits.Inc()
		return
	}
	r.CacheMisses.Inc()
}

// Start serves PrivateMetrics on /metrics. If metricsBind is a bare port it
// listens on localhost.
func Start(logger log.Logger, metricsBind string) (net.Listener, error) {
	logger.Infow("metrics starting", "desired_port", metricsBind)
	Default()

	if !strings.Contains(metricsBind, ":") {
		metricsBind = "127.0.0.1:" + metricsBind
	}
	//nolint:noctx
	l, err := net.Listen("tcp", metricsBind)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}
	logger.Infow("metric listener started", "addr", l.Addr())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(PrivateMetrics, promhttp.HandlerOpts{Registry: PrivateMetrics}))

	s := http.Server{Addr: l.Addr().String(), ReadHeaderTimeout: 3 * time.Second, Handler: mux}
	go func() {
		if err := s.Serve(l); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Warnw("", "metrics", "listen finished", "err", err)
		}
	}()
	return l, nil
}
