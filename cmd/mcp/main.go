package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/blueprint-assistant/internal/adapters/mcp"
	"github.com/kirillkom/blueprint-assistant/internal/bootstrap"
	"github.com/kirillkom/blueprint-assistant/internal/config"
	"github.com/kirillkom/blueprint-assistant/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// stdout carries the protocol; logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	if strings.TrimSpace(cfg.MCPUserID) == "" {
		logger.Error("mcp_user_missing", "error", "MCP_USER_ID is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{SkipQueue: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(mcpadapter.Services{
		Analyzer: app.Analyzer,
		Chat:     app.Chat,
		Comparer: app.Comparer,
		Searcher: app.Searcher,
	}, cfg.MCPUserID, logger)

	logger.Info("mcp_serving_stdio", "user_id", cfg.MCPUserID)
	if err := server.ServeStdio(tools.Server(version)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
