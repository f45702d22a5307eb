package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/scanscribe/internal/adapters/http"
	"github.com/kirillkom/scanscribe/internal/bootstrap"
	"github.com/kirillkom/scanscribe/internal/config"
	"github.com/kirillkom/scanscribe/internal/observability/logging"
)

const sessionSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	logging.Setup("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := bootstrap.New(cfg, "api")
	go app.Sessions.Run(ctx, sessionSweepInterval)

	router, err := httpadapter.NewRouter(
		cfg,
		app.Relay,
		app.Sessions,
		httpadapter.WithMetrics(app.Metrics),
	).Handler()
	if err != nil {
		slog.Error("router_init_failed", "error", err.Error())
		os.Exit(1)
	}

	// Stage calls wait on the model, so the write timeout has to cover the
	// upstream timeout.
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "model", cfg.GeminiModel)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err.Error())
	}
}
