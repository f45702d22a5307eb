package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

func scrape(t *testing.T, m *HTTPServerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestMiddlewareNormalizesSessionPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/sessions/5b0c/transcribe", nil))

	out := scrape(t, m)
	want := `scanscribe_http_requests_total{method="POST",path="/v1/sessions/{id}/transcribe",service="api",status="409"} 1`
	if !strings.Contains(out, want) {
		t.Fatalf("missing %s in:\n%s", want, out)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/transcribe":            "/api/transcribe",
		"/v1/sessions":               "/v1/sessions",
		"/v1/sessions/":              "/v1/sessions/",
		"/v1/sessions/abc":           "/v1/sessions/{id}",
		"/v1/sessions/abc/proofread": "/v1/sessions/{id}/proofread",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWorkflowMetricsShareRegistry(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	wf := NewWorkflowMetrics(m.Registry(), "api")

	wf.ObserveStage(domain.StageProofreading, "done", 2*time.Second)
	wf.ObserveUpstream("http_error", 300*time.Millisecond)
	m.RecordRelay("api", "ok", true, 2048)

	out := scrape(t, m)
	for _, want := range []string{
		`scanscribe_workflow_stage_total{outcome="done",service="api",stage="proofreading"} 1`,
		`scanscribe_upstream_requests_total{outcome="http_error",service="api"} 1`,
		`scanscribe_relay_requests_total{outcome="ok",search="true",service="api"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in:\n%s", want, out)
		}
	}
}
