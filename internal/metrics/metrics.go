package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	IngestBatches   *prometheus.CounterVec
	IngestRecords   prometheus.Counter
	LeadUpserts     *prometheus.CounterVec
	MetaRequests    *prometheus.CounterVec
	MetaLatency     *prometheus.HistogramVec
	WARequests      *prometheus.CounterVec
	SyncRuns        *prometheus.CounterVec
	Errors          *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			IngestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_batches_total",
				Help:      "Total ingestion batches by outcome.",
			}, []string{"status"}),
			IngestRecords: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_records_total",
				Help:      "Total canonical records accepted for upsert.",
			}),
			LeadUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lead_upserts_total",
				Help:      "Total lead rows upserted by source path.",
			}, []string{"source"}),
			MetaRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "meta_requests_total",
				Help:      "Total Graph API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			MetaLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "meta_request_duration_seconds",
				Help:      "Latency distribution for Graph API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			WARequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "whatsapp_requests_total",
				Help:      "Total messaging API requests by status.",
			}, []string{"status"}),
			SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Total sync job runs by kind and outcome.",
			}, []string{"kind", "status"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.IngestBatches,
			metricsInstance.IngestRecords,
			metricsInstance.LeadUpserts,
			metricsInstance.MetaRequests,
			metricsInstance.MetaLatency,
			metricsInstance.WARequests,
			metricsInstance.SyncRuns,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
