package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/config"
	"github.com/campusevents/server/internal/domain/reports"
	"github.com/campusevents/server/internal/domain/users"
	"github.com/campusevents/server/internal/mcp"
	"github.com/campusevents/server/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stdout belongs to the stdio transport.
	logger := config.NewLoggerTo(cfg.Base.Logging, os.Stderr)
	logger.Info().
		Str("transport", string(cfg.Transport.Type)).
		Int64("college_id", cfg.MCP.CollegeID).
		Str("environment", cfg.Base.Environment).
		Msg("starting MCP server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Open(ctx, cfg.Base.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository initialization failed: %w", err)
	}

	tokens := auth.NewJWTManager(cfg.Base.Auth.JWTSecret, cfg.Base.Auth.JWTExpiry, cfg.Base.Auth.Issuer)
	userService := users.NewService(repo.Users(), tokens, logger)
	reportService := reports.NewService(repo.Reports(), logger)

	srv := mcp.NewServer(mcp.Config{
		Name:      cfg.MCP.Name,
		Version:   cfg.MCP.Version,
		CollegeID: cfg.MCP.CollegeID,
	}, reportService)

	err = mcp.Serve(ctx, srv.MCPServer(), cfg.Transport, mcp.HTTPAuth{
		Tokens: tokens,
		Users:  userService,
		Env:    cfg.Base.Environment,
	}, cfg.Base.RateLimit, logger)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
