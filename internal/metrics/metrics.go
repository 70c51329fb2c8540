// Package metrics provides Prometheus metrics for the FilesBoard client.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesboard_http_requests_total",
			Help: "Total number of API requests issued",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filesboard_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	unauthorizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filesboard_unauthorized_total",
			Help: "Total 401 responses that forced re-authentication",
		},
	)

	// Upload metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesboard_uploads_total",
			Help: "Total number of file uploads",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filesboard_upload_bytes_total",
			Help: "Total bytes of successfully uploaded files",
		},
	)

	// Listing metrics
	listingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filesboard_listing_entries",
			Help: "Number of entries in the visible folder listing",
		},
	)

	staleListingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filesboard_stale_listings_total",
			Help: "Listing responses discarded because a newer navigation was issued",
		},
	)

	previewUnavailableTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filesboard_preview_unavailable_total",
			Help: "Text previews that could not be loaded",
		},
	)

	// Sharing metrics
	shareLinksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesboard_share_links_total",
			Help: "Total public link creations",
		},
		[]string{"status"},
	)

	noticesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesboard_notices_total",
			Help: "Total user-facing notices published",
		},
		[]string{"level"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EndpointLabel reduces a request path to its route prefix so that file
// names never become label values ("/api/preview/a.txt" -> "/api/preview",
// "/private/a.jpg" -> "/private").
func EndpointLabel(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	n := 1
	if parts[0] == "api" && len(parts) > 1 {
		n = 2
	}
	return "/" + strings.Join(parts[:n], "/")
}

// RecordHTTPRequest records an API request metric. status 0 means the
// request never produced a response.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	endpoint := EndpointLabel(path)
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordUnauthorized records a 401 response.
func RecordUnauthorized() {
	unauthorizedTotal.Inc()
}

// RecordUpload records the outcome of one upload.
func RecordUpload(bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	} else {
		uploadBytesTotal.Add(float64(bytes))
	}
	uploadsTotal.WithLabelValues(status).Inc()
}

// SetListingEntries sets the size of the visible listing.
func SetListingEntries(count int) {
	listingEntries.Set(float64(count))
}

// RecordStaleListing records a discarded listing response.
func RecordStaleListing() {
	staleListingsTotal.Inc()
}

// RecordPreviewUnavailable records a failed preview load.
func RecordPreviewUnavailable() {
	previewUnavailableTotal.Inc()
}

// RecordShareLink records a public link creation attempt.
func RecordShareLink(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	shareLinksTotal.WithLabelValues(status).Inc()
}

// RecordNotice records a published notice.
func RecordNotice(level string) {
	noticesTotal.WithLabelValues(level).Inc()
}
