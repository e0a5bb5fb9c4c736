package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QueryStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragserve",
			Name:      "query_stage_duration_seconds",
			Help:      "Duration of each query pipeline stage in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // "expand" / "retrieve" / "rerank" / "assemble" / "stream"
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragserve",
			Name:      "retrieved_chunks",
			Help:      "Unique chunks merged per query before reranking",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 25, 50},
		},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragserve",
			Name:      "queries_total",
			Help:      "Total chat queries by outcome",
		},
		[]string{"status"}, // "ok" / "error"
	)

	SyncFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragserve",
			Name:      "sync_files_total",
			Help:      "Files processed by document sync",
		},
		[]string{"action", "status"}, // action: "index" / "delete"; status: "ok" / "error"
	)

	SyncRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragserve",
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of one owner sync run in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)
)

var registered bool

// Register registers all service metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(QueryStageDuration)
	prometheus.MustRegister(RetrievedChunks)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(SyncFilesTotal)
	prometheus.MustRegister(SyncRunDuration)
	registered = true
}
