package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ValidationsRun        prometheus.Counter
	ValidationsFailed     prometheus.Counter
	QualityScore          prometheus.Histogram
	AssessmentTransitions *prometheus.CounterVec
	ComplianceRuns        prometheus.Counter
	ComplianceScore       prometheus.Histogram
	CacheHits             prometheus.Counter
	CacheMisses           prometheus.Counter
	AuditEventsWritten    prometheus.Counter
	AuditEventsDropped    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ValidationsRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinerja_validations_total",
			Help: "Total number of performance-data validations run",
		}),
		ValidationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinerja_validations_failed_total",
			Help: "Total number of validations producing an invalid verdict",
		}),
		QualityScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kinerja_quality_score",
			Help:    "Distribution of data quality scores",
			Buckets: []float64{10, 30, 50, 70, 80, 90, 100},
		}),
		AssessmentTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kinerja_assessment_transitions_total",
			Help: "Assessment state transitions by target state",
		}, []string{"to"}),
		ComplianceRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinerja_compliance_runs_total",
			Help: "Total number of compliance aggregations run",
		}),
		ComplianceScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kinerja_compliance_score",
			Help:    "Distribution of institution compliance scores",
			Buckets: []float64{30, 50, 70, 80, 90, 100},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinerja_cache_hits_total",
			Help: "Cache hits on aggregate reads",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinerja_cache_misses_total",
			Help: "Cache misses on aggregate reads",
		}),
		AuditEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinerja_audit_events_written_total",
			Help: "Audit events persisted",
		}),
		AuditEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kinerja_audit_events_dropped_total",
			Help: "Audit events dropped due to inbox pressure or store failure",
		}),
	}
}
