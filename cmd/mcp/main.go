package main

import (
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/scanscribe/internal/adapters/mcp"
	"github.com/kirillkom/scanscribe/internal/bootstrap"
	"github.com/kirillkom/scanscribe/internal/config"
	"github.com/kirillkom/scanscribe/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	// stdout carries the protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	app := bootstrap.New(cfg, "mcp")
	tools := mcpadapter.NewTools(app.NewWorkflow())

	slog.Info("mcp_serving_stdio", "model", cfg.GeminiModel)
	if err := server.ServeStdio(tools.Server()); err != nil {
		slog.Error("mcp_server_failed", "error", err.Error())
		os.Exit(1)
	}
}
