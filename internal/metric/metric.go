package metric

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"icsgen/internal/ics"
)

// Failure kinds reported by icsgen_build_failures_total.
const (
	KindValidation = "validation"
	KindParse      = "parse"
	KindInternal   = "internal"
)

// Recorder holds the build collectors. A nil *Recorder records nothing.
type Recorder struct {
	builds   *prometheus.CounterVec
	failures *prometheus.CounterVec
	size     prometheus.Histogram
	latency  prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		builds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "icsgen_builds_total",
			Help: "Successfully built calendar documents by span mode",
		}, []string{"mode"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "icsgen_build_failures_total",
			Help: "Rejected or failed builds by failure kind",
		}, []string{"kind"}),
		size: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "icsgen_build_bytes",
			Help:    "Size of generated calendar documents in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 8),
		}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "icsgen_build_duration_seconds",
			Help:    "Time spent decoding and building one document",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

// ObserveBuild records a successful build.
func (r *Recorder) ObserveBuild(mode ics.Mode, size int, took time.Duration) {
	if r == nil {
		return
	}
	r.builds.WithLabelValues(string(mode)).Inc()
	r.size.Observe(float64(size))
	r.latency.Observe(took.Seconds())
}

// ObserveFailure records a failed build, classified by FailureKind.
func (r *Recorder) ObserveFailure(err error) {
	if r == nil || err == nil {
		return
	}
	r.failures.WithLabelValues(FailureKind(err)).Inc()
}

// FailureKind maps err onto one of the Kind* labels.
func FailureKind(err error) string {
	var ve *ics.ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var pe *ics.ParseError
	if errors.As(err, &pe) {
		return KindParse
	}
	return KindInternal
}
