package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/files", "/api/files"},
		{"/api/files/report.pdf", "/api/files"},
		{"/api/preview/notes.md", "/api/preview"},
		{"/api/generate-temp-token/a b.txt", "/api/generate-temp-token"},
		{"/private/a.jpg", "/private"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := EndpointLabel(tt.path); got != tt.want {
			t.Errorf("EndpointLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestHandlerExposesClientMetrics(t *testing.T) {
	RecordHTTPRequest("GET", "/api/files", 200, 10*time.Millisecond)
	RecordUpload(42, true)
	RecordNotice("info")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"filesboard_http_requests_total",
		"filesboard_uploads_total",
		"filesboard_upload_bytes_total",
		"filesboard_notices_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}
