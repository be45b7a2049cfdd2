package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics records ingest and authorization outcomes.
type JournalMetrics struct {
	ingested       *prometheus.CounterVec
	duplicates     *prometheus.CounterVec
	denied         *prometheus.CounterVec
	exported       *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
}

// NewJournalMetrics registers the journal metrics on the provided registerer.
func NewJournalMetrics(reg prometheus.Registerer) *JournalMetrics {
	if reg == nil {
		return &JournalMetrics{}
	}
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_events_ingested",
		Help: "Events accepted into the journal.",
	}, []string{"event_type"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_events_duplicate",
		Help: "Redeliveries resolved against an existing record.",
	}, []string{"event_type"})
	denied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_operations_denied",
		Help: "Operations rejected by the authorization gate.",
	}, []string{"operation"})
	exported := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_events_exported",
		Help: "Records emitted to downstream sinks.",
	}, []string{"sink"})
	ingestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_ingest_duration_seconds",
		Help:    "Duration of journal ingests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(ingested, duplicates, denied, exported, ingestDuration)
	return &JournalMetrics{
		ingested:       ingested,
		duplicates:     duplicates,
		denied:         denied,
		exported:       exported,
		ingestDuration: ingestDuration,
	}
}

// IncIngested increments the accepted counter for the event type.
func (m *JournalMetrics) IncIngested(eventType string) {
	if m == nil || m.ingested == nil {
		return
	}
	m.ingested.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDuplicate increments the duplicate counter for the event type.
func (m *JournalMetrics) IncDuplicate(eventType string) {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDenied increments the denied counter for the operation.
func (m *JournalMetrics) IncDenied(operation string) {
	if m == nil || m.denied == nil {
		return
	}
	m.denied.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncExported adds count to the export counter for the sink.
func (m *JournalMetrics) IncExported(sink string, count int) {
	if m == nil || m.exported == nil || count <= 0 {
		return
	}
	m.exported.WithLabelValues(normalizeLabel(sink)).Add(float64(count))
}

// ObserveIngestDuration records the duration for the event type.
func (m *JournalMetrics) ObserveIngestDuration(eventType string, duration time.Duration) {
	if m == nil || m.ingestDuration == nil {
		return
	}
	m.ingestDuration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
