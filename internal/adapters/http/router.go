package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kirillkom/scanscribe/internal/config"
	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/core/ports"
	"github.com/kirillkom/scanscribe/internal/observability/metrics"
)

const (
	serviceName = "api"
	relayPath   = "/api/transcribe"
)

type Router struct {
	cfg      config.Config
	relay    ports.Relay
	sessions ports.SessionRegistry
	metrics  *metrics.HTTPServerMetrics
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func NewRouter(
	cfg config.Config,
	relay ports.Relay,
	sessions ports.SessionRegistry,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:      cfg,
		relay:    relay,
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler assembles the route table. It fails only when the embedded
// OpenAPI document is broken.
func (rt *Router) Handler() (http.Handler, error) {
	validator, err := loadOpenAPIRouter()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPIDocument)
	mux.HandleFunc("POST "+relayPath, rt.relayGenerate)

	createSession := rateLimitMiddleware(
		http.HandlerFunc(rt.createSession),
		rt.cfg.SessionRateLimitRPS,
		rt.cfg.SessionRateLimitBurst,
	)
	mux.Handle("POST /v1/sessions", createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.deleteSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/attachment", rt.uploadAttachment)
	mux.HandleFunc("POST /v1/sessions/{id}/clear", rt.clearSession)
	mux.HandleFunc("POST /v1/sessions/{id}/transcribe", rt.transcribe)
	mux.HandleFunc("POST /v1/sessions/{id}/proofread", rt.proofread)
	mux.HandleFunc("POST /v1/sessions/{id}/resources", rt.generateResources)
	mux.HandleFunc("POST /v1/sessions/{id}/navigate", rt.navigate)

	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	if rt.cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(rt.cfg.StaticDir)))
	}

	var handler http.Handler = openAPIValidationMiddleware(mux, validator)
	handler = rt.relayReadyMiddleware(handler)
	handler = maxBodyMiddleware(handler, rt.cfg.RelayMaxBodyBytes)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler), nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) relayGenerate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerationRequest
	if err := decodeJSON(r, &req); err != nil {
		rt.recordRelay(relayOutcome(err), false, r.ContentLength)
		writeError(w, mapErrorToHTTPStatus(err), domain.UserMessage(err))
		return
	}

	resp, err := rt.relay.Relay(r.Context(), req)
	rt.recordRelay(relayOutcome(err), req.NeedsSearch, r.ContentLength)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		slog.Warn("relay_failed",
			"request_id", requestIDFromContext(r.Context()),
			"status", status,
			"error", err.Error(),
		)
		writeError(w, status, domain.UserMessage(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Raw)
}

// relayReadyMiddleware answers relay calls with the configuration error
// before the envelope is validated.
func (rt *Router) relayReadyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != relayPath {
			next.ServeHTTP(w, r)
			return
		}
		if err := rt.relay.Ready(); err != nil {
			rt.recordRelay(relayOutcome(err), false, r.ContentLength)
			writeError(w, mapErrorToHTTPStatus(err), domain.UserMessage(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) recordRelay(outcome string, needsSearch bool, payloadBytes int64) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRelay(serviceName, outcome, needsSearch, payloadBytes)
}

func (rt *Router) createSession(w http.ResponseWriter, _ *http.Request) {
	id, workflow := rt.sessions.Create()
	if rt.metrics != nil {
		rt.metrics.RecordSessionCreated(serviceName)
		rt.metrics.SetActiveSessions(rt.sessions.Len())
	}
	writeJSON(w, http.StatusCreated, sessionView(id, workflow))
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	id, workflow, ok := rt.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionView(id, workflow))
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), domain.UserMessage(err))
		return
	}
	if rt.metrics != nil {
		rt.metrics.SetActiveSessions(rt.sessions.Len())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, workflow, ok := rt.lookupSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Data     string `json:"data"`
		MimeType string `json:"mimeType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeStage(w, id, workflow, err)
		return
	}
	att, err := domain.NewAttachment(req.Data, req.MimeType)
	if err != nil {
		writeStage(w, id, workflow, err)
		return
	}
	workflow.Upload(att)
	writeStage(w, id, workflow, nil)
}

func (rt *Router) clearSession(w http.ResponseWriter, r *http.Request) {
	id, workflow, ok := rt.lookupSession(w, r)
	if !ok {
		return
	}
	workflow.Clear()
	writeStage(w, id, workflow, nil)
}

func (rt *Router) transcribe(w http.ResponseWriter, r *http.Request) {
	id, workflow, ok := rt.lookupSession(w, r)
	if !ok {
		return
	}

	var req struct {
		PageRange string `json:"pageRange"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeStage(w, id, workflow, err)
		return
	}
	err := workflow.StartTranscription(stageContext(r), req.PageRange)
	writeStage(w, id, workflow, err)
}

func (rt *Router) proofread(w http.ResponseWriter, r *http.Request) {
	id, workflow, ok := rt.lookupSession(w, r)
	if !ok {
		return
	}
	err := workflow.StartProofreading(stageContext(r))
	writeStage(w, id, workflow, err)
}

func (rt *Router) generateResources(w http.ResponseWriter, r *http.Request) {
	id, workflow, ok := rt.lookupSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Kind string `json:"kind"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeStage(w, id, workflow, err)
		return
	}
	kind, err := domain.ParseResourceKind(req.Kind)
	if err != nil {
		writeStage(w, id, workflow, err)
		return
	}
	err = workflow.GenerateResources(stageContext(r), kind)
	writeStage(w, id, workflow, err)
}

func (rt *Router) navigate(w http.ResponseWriter, r *http.Request) {
	id, workflow, ok := rt.lookupSession(w, r)
	if !ok {
		return
	}

	var req struct {
		View      string `json:"view"`
		Direction string `json:"direction"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeStage(w, id, workflow, err)
		return
	}
	view, err := domain.ParsePageView(req.View)
	if err != nil {
		writeStage(w, id, workflow, err)
		return
	}
	switch req.Direction {
	case "next":
		workflow.Advance(view)
	case "prev":
		workflow.Retreat(view)
	default:
		writeStage(w, id, workflow, &domain.MessageError{
			Kind:    domain.ErrInvalidInput,
			Message: "direction must be next or prev",
		})
		return
	}
	writeStage(w, id, workflow, nil)
}

func (rt *Router) lookupSession(w http.ResponseWriter, r *http.Request) (string, ports.Workflow, bool) {
	id := r.PathValue("id")
	workflow, err := rt.sessions.Get(id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), domain.UserMessage(err))
		return "", nil, false
	}
	return id, workflow, true
}

// stageContext keeps a stage running when the client goes away; its
// result still lands in the session.
func stageContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func sessionView(id string, workflow ports.Workflow) domain.SessionView {
	view := workflow.View()
	view.ID = id
	return view
}

type stageResponse struct {
	Session domain.SessionView `json:"session"`
	Error   string             `json:"error,omitempty"`
}

func writeStage(w http.ResponseWriter, id string, workflow ports.Workflow, err error) {
	resp := stageResponse{Session: sessionView(id, workflow)}
	status := http.StatusOK
	if err != nil {
		status = mapErrorToHTTPStatus(err)
		resp.Error = domain.UserMessage(err)
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &domain.MessageError{Kind: maxBytesErr, Message: "request body too large"}
		}
		return &domain.MessageError{Kind: domain.ErrInvalidInput, Message: "invalid json"}
	}
	return nil
}

func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &domain.MessageError{Kind: domain.ErrInvalidInput, Message: "invalid json"}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
