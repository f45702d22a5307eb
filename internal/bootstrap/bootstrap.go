package bootstrap

import (
	"log/slog"
	"math"

	"github.com/kirillkom/scanscribe/internal/config"
	"github.com/kirillkom/scanscribe/internal/core/ports"
	"github.com/kirillkom/scanscribe/internal/core/usecase"
	"github.com/kirillkom/scanscribe/internal/infrastructure/extractor/pdfmeta"
	"github.com/kirillkom/scanscribe/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/scanscribe/internal/infrastructure/relayclient"
	"github.com/kirillkom/scanscribe/internal/infrastructure/resilience"
	"github.com/kirillkom/scanscribe/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Metrics   *metrics.HTTPServerMetrics
	Relay     *usecase.RelayUseCase
	Completer ports.Completer
	Sessions  *usecase.SessionManager

	inspector ports.DocumentInspector
	observer  ports.StageObserver
}

// New wires the relay, the completer used by workflows and the session
// registry. service labels the metrics of this process.
func New(cfg config.Config, service string) *App {
	httpMetrics := metrics.NewHTTPServerMetrics(service)
	workflowMetrics := metrics.NewWorkflowMetrics(httpMetrics.Registry(), service)

	executor := resilience.NewExecutor(resilience.Config{
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      breakerCount(cfg.BreakerMinRequests),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: breakerCount(cfg.BreakerHalfOpenMaxCalls),
	})
	model := gemini.New(
		cfg.GeminiBaseURL,
		cfg.GeminiModel,
		cfg.GeminiAPIKey,
		cfg.UpstreamTimeout,
		gemini.WithExecutor(executor),
		gemini.WithObserver(workflowMetrics),
	)
	if !model.Configured() {
		slog.Warn("api_key_missing", "detail", "relay calls will fail until API_Key is set")
	}
	relay := usecase.NewRelayUseCase(model)

	var completer ports.Completer = usecase.NewRelayCompleter(relay)
	if cfg.RelayURL != "" {
		completer = relayclient.New(cfg.RelayURL, cfg.UpstreamTimeout)
		slog.Info("workflow_relay_remote", "relay_url", cfg.RelayURL)
	}

	app := &App{
		Config:    cfg,
		Metrics:   httpMetrics,
		Relay:     relay,
		Completer: completer,
		inspector: pdfmeta.NewInspector(),
		observer:  workflowMetrics,
	}
	app.Sessions = usecase.NewSessionManager(app.NewWorkflow, cfg.SessionIdleTTL)
	return app
}

// NewWorkflow returns a fresh controller sharing the app's completer.
func (a *App) NewWorkflow() *usecase.WorkflowController {
	return usecase.NewWorkflowController(
		a.Completer,
		usecase.WithDocumentInspector(a.inspector),
		usecase.WithStageObserver(a.observer),
	)
}

// breakerCount converts a configured count for the breaker. Values out of
// range become 0, which selects the default.
func breakerCount(v int) uint32 {
	if v <= 0 || int64(v) > math.MaxUint32 {
		return 0
	}
	return uint32(v)
}
