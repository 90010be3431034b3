package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/txsched/internal/ir"
)

// Collector records run counters in its own Prometheus registry.
//
// It implements Sink (durations become histogram observations, log lines are
// ignored) and the executor's observer methods, so a single value can be
// passed to both WithSink and WithObserver.
type Collector struct {
	registry *prometheus.Registry

	Batches      prometheus.Counter
	Groups       prometheus.Counter
	GroupSize    prometheus.Histogram
	Transactions *prometheus.CounterVec
	Phase        *prometheus.HistogramVec
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches started",
		}),
		Groups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_total",
			Help:      "Groups started",
		}),
		GroupSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "group_size",
			Help:      "Transactions per group",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Evaluated transactions by outcome",
		}, []string{"outcome"}),
		Phase: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock time per measured scope",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"scope"}),
	}
	c.registry.MustRegister(c.Batches, c.Groups, c.GroupSize, c.Transactions, c.Phase)
	return c
}

// Registry returns the registry holding every collector metric.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteText writes the registry in the Prometheus text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// Log is a no-op; free text has no Prometheus representation.
func (c *Collector) Log(string) {}

// Duration observes d under the scope label.
func (c *Collector) Duration(scope string, d time.Duration) {
	c.Phase.WithLabelValues(scope).Observe(d.Seconds())
}

func (c *Collector) OnBatchStart(int, []string) {
	c.Batches.Inc()
}

func (c *Collector) OnGroupStart(_, _ int, ids []string) {
	c.Groups.Inc()
	c.GroupSize.Observe(float64(len(ids)))
}

func (c *Collector) OnTxEvaluated(string, string, ir.Delta) {
	c.Transactions.WithLabelValues("ok").Inc()
}

func (c *Collector) OnTxFailed(string, string, error) {
	c.Transactions.WithLabelValues("failed").Inc()
}

func (c *Collector) OnGroupMerged(int, int, ir.Delta) {}

func (c *Collector) OnExecutionEnd() {}
