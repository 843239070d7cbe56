// gsheets-mcp is an MCP server exposing Google Sheets and Drive operations
// as tools, over stdio, SSE, or streamable HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sheetkit/gsheets-mcp/internal/config"
	"github.com/sheetkit/gsheets-mcp/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()

	// stdout carries the stdio transport; logs always go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting Google Spreadsheet MCP server",
		"transport", cfg.Transport,
		"auth_mode", cfg.AuthMode(),
	)

	srv := server.New(cfg, logger)
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
