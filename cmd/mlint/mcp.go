package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/debug"
	"github.com/standardbeagle/mlint/internal/mcp"
)

func mcpCommand(c *cli.Context) error {
	// stdout carries JSON-RPC; keep every other writer off it
	debug.SetMCPMode(true)

	cfg, err := loadConfig(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return debug.Fatal("invalid config: %v\n", err)
	}

	server, err := mcp.NewServer(cfg, newLogger(c))
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug.LogMCP("Starting MCP server with stdio transport...\n")
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return debug.Fatal("MCP server error: %v\n", err)
	}
	return nil
}
