package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeMatched  = "matched"
	OutcomeTimedOut = "timed_out"
	OutcomeFailed   = "failed"

	// AnomalyMultipleMatches labels polls where more than one outcome referenced the image.
	AnomalyMultipleMatches = "multiple_matches"
	// AnomalyMalformedItems labels outcomes whose missing-item text could not be read.
	AnomalyMalformedItems = "malformed_missing_items"
)

var (
	correlationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ppesuite",
			Name:      "correlations_total",
			Help:      "Total number of correlations finished, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	correlationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ppesuite",
			Name:      "correlation_seconds",
			Help:      "Time from first poll to terminal result in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 4, 6, 8, 10, 15, 20, 25, 30, 60},
		},
	)

	pollAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ppesuite",
			Name:      "poll_attempts_total",
			Help:      "Total number of outcome store queries issued while correlating.",
		},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ppesuite",
			Name:      "correlation_anomalies_total",
			Help:      "Data anomalies seen while correlating, partitioned by kind.",
		},
		[]string{"kind"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ppesuite",
			Name:      "uploads_total",
			Help:      "Total number of image uploads, partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches ppesuite collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		correlationsTotal,
		correlationDurationSeconds,
		pollAttemptsTotal,
		anomaliesTotal,
		uploadsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCorrelation records a correlation duration and its terminal outcome.
func ObserveCorrelation(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeMatched, OutcomeTimedOut:
	default:
		outcome = OutcomeFailed
	}
	correlationsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	correlationDurationSeconds.Observe(duration.Seconds())
}

func IncPollAttempt() {
	pollAttemptsTotal.Inc()
}

func IncAnomaly(kind string) {
	anomaliesTotal.WithLabelValues(kind).Inc()
}

// ObserveUpload counts an upload attempt; ok=false covers validation and storage failures.
func ObserveUpload(ok bool) {
	result := "stored"
	if !ok {
		result = "rejected"
	}
	uploadsTotal.WithLabelValues(result).Inc()
}
