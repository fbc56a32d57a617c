// Package metrics provides Prometheus metrics for linksync.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linksync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Sync run metrics
	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"status"},
	)

	syncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linksync_sync_run_duration_seconds",
			Help:    "Duration of a complete sync run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Transfer metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_uploads_total",
			Help: "Total number of remote uploads",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linksync_upload_bytes_total",
			Help: "Total bytes uploaded to the remote store",
		},
	)

	stagedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_staged_files_total",
			Help: "Total number of URL fetches into the staging folder",
		},
		[]string{"result"},
	)

	linksMintedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksync_links_minted_total",
			Help: "Total number of shareable links requested",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordSyncRun records the outcome of one sync run.
func RecordSyncRun(status string, d time.Duration) {
	syncRunsTotal.WithLabelValues(status).Inc()
	syncRunDuration.Observe(d.Seconds())
}

// RecordUpload records one upload attempt.
func RecordUpload(ok bool, bytes int64) {
	if !ok {
		uploadsTotal.WithLabelValues("error").Inc()
		return
	}
	uploadsTotal.WithLabelValues("ok").Inc()
	uploadBytesTotal.Add(float64(bytes))
}

// RecordStaged records one fetch into the staging folder.
func RecordStaged(ok bool) {
	if ok {
		stagedFilesTotal.WithLabelValues("staged").Inc()
		return
	}
	stagedFilesTotal.WithLabelValues("failed").Inc()
}

// RecordLinkMinted records one shareable link request.
func RecordLinkMinted(ok bool) {
	if ok {
		linksMintedTotal.WithLabelValues("ok").Inc()
		return
	}
	linksMintedTotal.WithLabelValues("error").Inc()
}
