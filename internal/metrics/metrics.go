package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FilesLoaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "convoyset_files_loaded_total",
		Help: "Total raw JSON files loaded",
	})
	RecordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "convoyset_records_skipped_total",
		Help: "Raw records matching neither the tweet nor the bundle shape",
	})
	DatasetLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "convoyset_dataset_load_duration_seconds",
		Help:    "Partition load duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	ClassifierCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "convoyset_classifier_calls_total",
		Help: "Total classifier invocations",
	}, []string{"kind"})
	ClassifierErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "convoyset_classifier_errors_total",
		Help: "Classifier invocations recorded as the error sentinel",
	}, []string{"kind"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "convoyset_command_runs_total",
		Help: "Total CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "convoyset_command_errors_total",
		Help: "Total CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(FilesLoaded, RecordsSkipped, DatasetLoadDuration,
		ClassifierCalls, ClassifierErrors, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveDatasetLoad records one partition load duration.
func ObserveDatasetLoad(start time.Time) {
	DatasetLoadDuration.Observe(time.Since(start).Seconds())
}

// IncSkipped counts raw records the loader could not classify.
func IncSkipped(n int) {
	RecordsSkipped.Add(float64(n))
}

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
