package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/c360studio/semremodel/remodel"
)

// Metrics tracks batch outcomes.
type Metrics struct {
	outcomes  *prometheus.CounterVec
	mutations prometheus.Counter
	duration  prometheus.Histogram
}

// NewMetrics registers the batch metrics on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semremodel",
			Name:      "concepts_total",
			Help:      "Concepts remodeled, by status and rejection kind",
		}, []string{"status", "kind"}),
		mutations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "semremodel",
			Name:      "mutations_total",
			Help:      "Relationship mutations committed",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semremodel",
			Name:      "concept_duration_seconds",
			Help:      "Time spent remodeling one concept",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
		}),
	}
}

func (m *Metrics) observe(out *remodel.Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
	if out == nil {
		m.outcomes.WithLabelValues("error", "").Inc()
		return
	}
	kind := ""
	if out.Failure != nil {
		kind = string(out.Failure.Kind)
	}
	m.outcomes.WithLabelValues(out.Status.String(), kind).Inc()
	m.mutations.Add(float64(out.Count()))
}

// WriteTextfile writes the gathered metrics in the node-exporter textfile
// format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
