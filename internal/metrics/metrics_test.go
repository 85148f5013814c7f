package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	FilesLoaded.Inc()
	IncSkipped(3)
	ObserveDatasetLoad(time.Now().Add(-1500 * time.Millisecond))
	ClassifierCalls.WithLabelValues("tweet").Inc()
	ClassifierErrors.WithLabelValues("tweet").Inc()
	IncCommandRun("load")
	IncCommandError("load")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"convoyset_files_loaded_total",
		"convoyset_records_skipped_total",
		"convoyset_dataset_load_duration_seconds",
		"convoyset_classifier_calls_total",
		"convoyset_classifier_errors_total",
		"convoyset_command_runs_total",
		"convoyset_command_errors_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
