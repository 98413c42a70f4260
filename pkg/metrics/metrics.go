package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "ingest",
		Name:      "documents_total",
		Help:      "Documents processed, by result (ready, skipped, failed).",
	}, []string{"result"})

	ChunksPerDocument = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docqa",
		Subsystem: "ingest",
		Name:      "chunks_per_document",
		Help:      "Number of chunks produced per document.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	IngestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docqa",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Time to extract, chunk, embed and index one document.",
		Buckets:   prometheus.DefBuckets,
	})

	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "chat",
		Name:      "requests_total",
		Help:      "Chat requests, by status.",
	}, []string{"status"})

	ChatDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docqa",
		Subsystem: "chat",
		Name:      "duration_seconds",
		Help:      "Chat request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)
