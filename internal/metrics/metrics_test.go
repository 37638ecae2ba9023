package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("Register(again) error = %v", err)
	}
}

func TestObserveCorrelationNormalizesOutcome(t *testing.T) {
	before := testutil.ToFloat64(correlationsTotal.WithLabelValues(OutcomeFailed))
	ObserveCorrelation(-time.Second, "weird")
	after := testutil.ToFloat64(correlationsTotal.WithLabelValues(OutcomeFailed))
	if after-before != 1 {
		t.Fatalf("failed counter delta = %v, want 1", after-before)
	}

	before = testutil.ToFloat64(anomaliesTotal.WithLabelValues(AnomalyMultipleMatches))
	IncAnomaly(AnomalyMultipleMatches)
	if got := testutil.ToFloat64(anomaliesTotal.WithLabelValues(AnomalyMultipleMatches)); got-before != 1 {
		t.Fatalf("anomaly counter delta = %v, want 1", got-before)
	}
}
