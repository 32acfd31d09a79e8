package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	AllocationReasonLockConflict = "lock_conflict"
	AllocationReasonDuplicate    = "unique_violation"
	AllocationReasonUnknown      = "unknown"
)

// NumberingMetrics captures counter allocation health signals scraped from /metrics.
type NumberingMetrics struct {
	allocationRetries   *prometheus.CounterVec
	allocationFailures  *prometheus.CounterVec
	counterSyncRuns     prometheus.Counter
	counterSyncAdjusted prometheus.Counter
	docGroupSeqRetries  prometheus.Counter
}

var (
	numberingMetricsOnce sync.Once
	numberingMetrics     *NumberingMetrics
)

// Numbering returns the singleton numbering metrics registry.
func Numbering() *NumberingMetrics {
	return NumberingWithConfig(Config{})
}

// NumberingWithConfig returns the singleton numbering metrics registry using config labels.
func NumberingWithConfig(cfg Config) *NumberingMetrics {
	numberingMetricsOnce.Do(func() {
		numberingMetrics = newNumberingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return numberingMetrics
}

// ResetNumberingMetricsForTest resets the numbering metrics singleton for tests.
func ResetNumberingMetricsForTest() {
	numberingMetricsOnce = sync.Once{}
	numberingMetrics = nil
}

func newNumberingMetrics(registerer prometheus.Registerer, cfg Config) *NumberingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "logiport"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	allocationRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "logiport_number_allocation_retries_total",
		Help:        "Counter allocation retries by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"counter_key", "reason"})
	allocationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "logiport_number_allocation_failures_total",
		Help:        "Counter allocations that exhausted retries.",
		ConstLabels: constLabels,
	}, []string{"counter_key", "reason"})
	counterSyncRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "logiport_counter_sync_runs_total",
		Help:        "Counter resynchronization runs after transaction deletes.",
		ConstLabels: constLabels,
	})
	counterSyncAdjusted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "logiport_counter_sync_adjusted_total",
		Help:        "Counter resynchronization runs that changed the stored value.",
		ConstLabels: constLabels,
	})
	docGroupSeqRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "logiport_doc_group_seq_retries_total",
		Help:        "Document group sequence retries after unique violations.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		allocationRetries,
		allocationFailures,
		counterSyncRuns,
		counterSyncAdjusted,
		docGroupSeqRetries,
	)

	return &NumberingMetrics{
		allocationRetries:   allocationRetries,
		allocationFailures:  allocationFailures,
		counterSyncRuns:     counterSyncRuns,
		counterSyncAdjusted: counterSyncAdjusted,
		docGroupSeqRetries:  docGroupSeqRetries,
	}
}

// ObserveAllocationRetry records one allocation retry for a counter key.
func (m *NumberingMetrics) ObserveAllocationRetry(counterKey, reason string) {
	if m == nil {
		return
	}
	m.allocationRetries.WithLabelValues(counterKey, normalizeReason(reason)).Inc()
}

// ObserveAllocationFailure records an allocation that exhausted its retries.
func (m *NumberingMetrics) ObserveAllocationFailure(counterKey, reason string) {
	if m == nil {
		return
	}
	m.allocationFailures.WithLabelValues(counterKey, normalizeReason(reason)).Inc()
}

// ObserveCounterSync records a resynchronization run.
func (m *NumberingMetrics) ObserveCounterSync(adjusted bool) {
	if m == nil {
		return
	}
	m.counterSyncRuns.Inc()
	if adjusted {
		m.counterSyncAdjusted.Inc()
	}
}

// ObserveDocGroupSeqRetry records a document group sequence retry.
func (m *NumberingMetrics) ObserveDocGroupSeqRetry() {
	if m == nil {
		return
	}
	m.docGroupSeqRetries.Inc()
}

func normalizeReason(reason string) string {
	switch reason {
	case AllocationReasonLockConflict, AllocationReasonDuplicate:
		return reason
	default:
		return AllocationReasonUnknown
	}
}
