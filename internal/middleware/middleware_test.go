package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	dto "github.com/prometheus/client_model/go"

	"github.com/molpadia/molpastudio/internal/metrics"
)

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rw.statusCode)
	}
	n, err := rw.Write([]byte("abc"))
	if err != nil || n != 3 || rw.bytesWritten != 3 {
		t.Errorf("expected 3 bytes written, got %d (%v)", rw.bytesWritten, err)
	}
}

func TestFormatLine(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/videos?x=1", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("User-Agent", "molpa cli\nforged")
	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusOK)
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	line := formatLine(r, rw, 15*time.Millisecond, now)
	want := `2024-05-01 10:30:00 10.0.0.1 GET /api/videos x=1 200 0 15 "molpa cli forged"`
	if line != want {
		t.Errorf("got %q, want %q", line, want)
	}
}

func TestShouldSkip(t *testing.T) {
	cfg := DefaultLoggingConfig()
	cfg.LogHealthChecks = false
	tests := []struct {
		path string
		skip bool
	}{
		{"/api/videos", false},
		{"/health", true},
		{"/media/video/upload/cat.MP4", true},
		{"/home", false},
	}
	for _, tt := range tests {
		if got := shouldSkip(tt.path, cfg); got != tt.skip {
			t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.skip)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	if ip := clientIP(r); ip != "1.2.3.4" {
		t.Errorf("expected first forwarded address, got %q", ip)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/things/{id}", "418")
	var m dto.Metric
	counter.Write(&m)
	before := m.GetCounter().GetValue()
	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/things/"+id, nil))
	}
	counter.Write(&m)
	if got := m.GetCounter().GetValue(); got != before+2 {
		t.Errorf("expected %v requests on template label, got %v", before+2, got)
	}
	if !strings.HasPrefix(routeTemplate(httptest.NewRequest("GET", "/", nil)), "unmatched") {
		t.Error("expected unmatched label outside a router")
	}
}
