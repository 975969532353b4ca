package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"milestonez/internal/app"
	"milestonez/internal/config"
	"milestonez/internal/mcptools"
	"milestonez/pkg/logger"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const instructions = `milestonez turns a project description into a week-by-week milestone plan.
Call generate_milestones first; pass modifying_prompt with the same user_id and
project_id to revise the stored plan. update_milestone edits a single milestone in place.`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// stdout 是 MCP 通道；zap 默认写 stderr
	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to init service", zap.Error(err))
	}
	defer a.Close()

	s := server.NewMCPServer(
		"milestonez",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	mcptools.Register(s, a.Service)

	if err := server.ServeStdio(s); err != nil {
		log.Error("MCP server stopped", zap.Error(err))
	}
}
