package httpadapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/scanscribe/internal/config"
	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/core/ports"
	"github.com/kirillkom/scanscribe/internal/core/usecase"
	"github.com/kirillkom/scanscribe/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/scanscribe/internal/observability/metrics"
)

type relayFake struct {
	ready    error
	resp     *domain.GenerateResponse
	err      error
	requests []domain.GenerationRequest
}

func (f *relayFake) Ready() error { return f.ready }

func (f *relayFake) Relay(_ context.Context, req domain.GenerationRequest) (*domain.GenerateResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (c *scriptedCompleter) Complete(context.Context, domain.Prompt) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "", nil
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func newTestHandler(t *testing.T, cfg config.Config, relay ports.Relay, completer *scriptedCompleter) http.Handler {
	t.Helper()
	sessions := usecase.NewSessionManager(func() *usecase.WorkflowController {
		return usecase.NewWorkflowController(completer)
	}, 0)
	handler, err := NewRouter(cfg, relay, sessions, WithMetrics(metrics.NewHTTPServerMetrics("test"))).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, res.Body.String())
	}
}

const relayBody = `{"contents":[{"parts":[{"text":"hi"}]}],"needsSearch":true}`

func TestRelayReturnsUpstreamBodyVerbatim(t *testing.T) {
	raw := `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}],"modelVersion":"x"}`
	resp, err := domain.DecodeGenerateResponse([]byte(raw))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	relay := &relayFake{resp: resp}
	handler := newTestHandler(t, config.Config{}, relay, &scriptedCompleter{})

	res := doJSON(t, handler, http.MethodPost, "/api/transcribe", relayBody)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Body.String() != raw {
		t.Fatalf("expected raw upstream body, got %s", res.Body.String())
	}
	if len(relay.requests) != 1 || !relay.requests[0].NeedsSearch {
		t.Fatalf("expected needsSearch to reach the relay, got %+v", relay.requests)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRelayMapsErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing key",
			err:        &domain.MessageError{Kind: domain.ErrConfig, Message: "API key is not configured on the server."},
			wantStatus: http.StatusInternalServerError,
			wantError:  "API key is not configured on the server.",
		},
		{
			name:       "upstream status",
			err:        &domain.UpstreamError{StatusCode: 429, Message: "Gemini API failed: quota"},
			wantStatus: http.StatusTooManyRequests,
			wantError:  "Gemini API failed: quota",
		},
		{
			name:       "empty response",
			err:        &domain.MessageError{Kind: domain.ErrEmptyResponse, Message: "Could not process the request. The response from the model was empty."},
			wantStatus: http.StatusBadGateway,
			wantError:  "Could not process the request. The response from the model was empty.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(t, config.Config{}, &relayFake{err: tc.err}, &scriptedCompleter{})
			res := doJSON(t, handler, http.MethodPost, "/api/transcribe", relayBody)
			if res.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, res.Code)
			}
			var payload map[string]string
			decodeBody(t, res, &payload)
			if payload["error"] != tc.wantError {
				t.Fatalf("error = %q, want %q", payload["error"], tc.wantError)
			}
		})
	}
}

func TestRelayRejectsSchemaViolations(t *testing.T) {
	relay := &relayFake{}
	handler := newTestHandler(t, config.Config{}, relay, &scriptedCompleter{})

	res := doJSON(t, handler, http.MethodPost, "/api/transcribe", `{"contents":[]}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
	}
	if len(relay.requests) != 0 {
		t.Fatalf("invalid envelope must not reach the relay")
	}
}

func TestRelayReportsMissingKeyBeforeSchemaCheck(t *testing.T) {
	relay := &relayFake{ready: &domain.MessageError{Kind: domain.ErrConfig, Message: "API key is not configured on the server."}}
	handler := newTestHandler(t, config.Config{}, relay, &scriptedCompleter{})

	res := doJSON(t, handler, http.MethodPost, "/api/transcribe", `{"contents":[]}`)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", res.Code, res.Body.String())
	}
	var payload map[string]string
	decodeBody(t, res, &payload)
	if payload["error"] != "API key is not configured on the server." {
		t.Fatalf("unexpected error %q", payload["error"])
	}
	if len(relay.requests) != 0 {
		t.Fatalf("relay must not be called without a key")
	}
}

func TestRelayForwardsEnvelopeUnchanged(t *testing.T) {
	var upstreamBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		upstreamBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer upstream.Close()

	model := gemini.New(upstream.URL, "gemini-2.5-flash", "secret", time.Second)
	handler := newTestHandler(t, config.Config{}, usecase.NewRelayUseCase(model), &scriptedCompleter{})

	contents := `[{"parts":[{"text":"hi"},{"fileData":{"mimeType":"application/pdf","fileUri":"gs://b/doc.pdf"}}]}]`
	generationConfig := `{"responseMimeType":"application/json","responseSchema":{"type":"OBJECT"}}`
	body := `{"contents":` + contents + `,"generationConfig":` + generationConfig + `}`

	res := doJSON(t, handler, http.MethodPost, "/api/transcribe", body)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	want := `{"contents":` + contents + `,"generationConfig":` + generationConfig + `}`
	if upstreamBody != want {
		t.Fatalf("upstream body changed:\n got %s\nwant %s", upstreamBody, want)
	}
}

func TestRelayRejectsOversizedBody(t *testing.T) {
	relay := &relayFake{}
	handler := newTestHandler(t, config.Config{RelayMaxBodyBytes: 64}, relay, &scriptedCompleter{})

	body := `{"contents":[{"parts":[{"text":"` + strings.Repeat("x", 200) + `"}]}]}`
	res := doJSON(t, handler, http.MethodPost, "/api/transcribe", body)
	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", res.Code, res.Body.String())
	}
}

func TestSessionWorkflowOverHTTP(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		`{"transcription":[{"page":1,"content":"helo"},{"page":2,"content":"wrld"}]}`,
		`{"proofreading":[{"page":1,"content":"hello"},{"page":2,"content":"world"}]}`,
		"* [Go](https://go.dev)",
	}}
	handler := newTestHandler(t, config.Config{}, &relayFake{}, completer)

	res := doJSON(t, handler, http.MethodPost, "/v1/sessions", nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("create expected 201, got %d", res.Code)
	}
	var created domain.SessionView
	decodeBody(t, res, &created)
	if created.ID == "" {
		t.Fatalf("expected session id")
	}
	base := "/v1/sessions/" + created.ID

	res = doJSON(t, handler, http.MethodPut, base+"/attachment", map[string]string{
		"data":     base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
		"mimeType": domain.MimeTypePDF,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("upload expected 200, got %d: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, handler, http.MethodPost, base+"/transcribe", map[string]string{"pageRange": "1-2"})
	var stage stageResponse
	decodeBody(t, res, &stage)
	if res.Code != http.StatusOK || stage.Session.Transcription.Pages != 2 {
		t.Fatalf("transcribe: status %d, view %+v", res.Code, stage.Session.Transcription)
	}
	if stage.Session.Transcription.Label != "Page 1 of 2 (Transcribed)" {
		t.Fatalf("unexpected label %q", stage.Session.Transcription.Label)
	}

	res = doJSON(t, handler, http.MethodPost, base+"/proofread", nil)
	stage = stageResponse{}
	decodeBody(t, res, &stage)
	if res.Code != http.StatusOK || stage.Session.ProofreadFullText != "hello\n\nworld" {
		t.Fatalf("proofread: status %d, full text %q", res.Code, stage.Session.ProofreadFullText)
	}

	res = doJSON(t, handler, http.MethodPost, base+"/navigate", map[string]string{"view": "proofread", "direction": "next"})
	stage = stageResponse{}
	decodeBody(t, res, &stage)
	if stage.Session.Proofreading.Cursor != 1 || stage.Session.Transcription.Cursor != 0 {
		t.Fatalf("navigation must move only the proofread reader: %+v / %+v",
			stage.Session.Proofreading, stage.Session.Transcription)
	}

	res = doJSON(t, handler, http.MethodPost, base+"/resources", map[string]string{"kind": "research"})
	stage = stageResponse{}
	decodeBody(t, res, &stage)
	want := `<ol><li><a href="https://go.dev" target="_blank" rel="noopener noreferrer">Go</a></ol>`
	if res.Code != http.StatusOK || stage.Session.Resources.HTML != want {
		t.Fatalf("resources: status %d, html %q", res.Code, stage.Session.Resources.HTML)
	}

	res = doJSON(t, handler, http.MethodDelete, base, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", res.Code)
	}
	res = doJSON(t, handler, http.MethodGet, base, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("deleted session expected 404, got %d", res.Code)
	}
}

func TestSessionPreconditionIsConflict(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &relayFake{}, &scriptedCompleter{})

	res := doJSON(t, handler, http.MethodPost, "/v1/sessions", nil)
	var created domain.SessionView
	decodeBody(t, res, &created)

	res = doJSON(t, handler, http.MethodPost, "/v1/sessions/"+created.ID+"/proofread", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	var stage stageResponse
	decodeBody(t, res, &stage)
	if stage.Error == "" {
		t.Fatalf("expected error text in stage response")
	}
}

func TestSessionUploadRejectsUnsupportedType(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &relayFake{}, &scriptedCompleter{})

	res := doJSON(t, handler, http.MethodPost, "/v1/sessions", nil)
	var created domain.SessionView
	decodeBody(t, res, &created)

	res = doJSON(t, handler, http.MethodPut, "/v1/sessions/"+created.ID+"/attachment", map[string]string{
		"data":     base64.StdEncoding.EncodeToString([]byte("hello")),
		"mimeType": "text/plain",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var stage stageResponse
	decodeBody(t, res, &stage)
	if stage.Error != "Unsupported file type. Please upload an image or a PDF." {
		t.Fatalf("unexpected error %q", stage.Error)
	}
	if stage.Session.CanTranscribe {
		t.Fatalf("rejected upload must not enable transcription")
	}
}

func TestTranscriptionFailureKeepsSessionAndReportsStatus(t *testing.T) {
	completer := &scriptedCompleter{err: &domain.UpstreamError{StatusCode: 503, Message: "Gemini API failed: overloaded"}}
	handler := newTestHandler(t, config.Config{}, &relayFake{}, completer)

	res := doJSON(t, handler, http.MethodPost, "/v1/sessions", nil)
	var created domain.SessionView
	decodeBody(t, res, &created)
	base := "/v1/sessions/" + created.ID

	doJSON(t, handler, http.MethodPut, base+"/attachment", map[string]string{
		"data":     base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}),
		"mimeType": "image/png",
	})
	res = doJSON(t, handler, http.MethodPost, base+"/transcribe", nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected upstream 503, got %d", res.Code)
	}
	var stage stageResponse
	decodeBody(t, res, &stage)
	if stage.Session.Transcription.Status != domain.StageFailed {
		t.Fatalf("expected failed transcription, got %+v", stage.Session.Transcription)
	}
}

func TestSessionCreateRateLimit(t *testing.T) {
	handler := newTestHandler(t, config.Config{
		SessionRateLimitRPS:   1,
		SessionRateLimitBurst: 1,
	}, &relayFake{}, &scriptedCompleter{})

	res1 := doJSON(t, handler, http.MethodPost, "/v1/sessions", nil)
	if res1.Code != http.StatusCreated {
		t.Fatalf("first request expected 201, got %d", res1.Code)
	}
	res2 := doJSON(t, handler, http.MethodPost, "/v1/sessions", nil)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}

	health := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if health.Code != http.StatusOK {
		t.Fatalf("limit must not apply to other routes, got %d", health.Code)
	}
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &relayFake{}, &scriptedCompleter{})

	res := doJSON(t, handler, http.MethodGet, "/v1/sessions/missing", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestServesOpenAPIDocumentAndMetrics(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &relayFake{}, &scriptedCompleter{})

	res := doJSON(t, handler, http.MethodGet, "/openapi.yaml", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "/api/transcribe") {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}

	doJSON(t, handler, http.MethodPost, "/v1/sessions", nil)
	res = doJSON(t, handler, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "scanscribe_sessions_created_total") {
		t.Fatalf("expected session counter in metrics output")
	}
}
