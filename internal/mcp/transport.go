// Package mcp serves the campus report tools over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/campusevents/server/internal/api/middleware"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/config"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

type TransportType string

const (
	// TransportStdio reads requests from stdin and writes responses to stdout.
	TransportStdio TransportType = "stdio"
	// TransportHTTP serves Streamable HTTP on Host:Port.
	TransportHTTP TransportType = "http"
)

const (
	DefaultTransport = TransportStdio
	DefaultPort      = 8090

	GracefulShutdownTimeout = 30 * time.Second
)

type TransportConfig struct {
	Type TransportType
	Port int
	Host string
}

// LoadTransportConfig reads MCP_TRANSPORT, MCP_PORT and MCP_HOST.
func LoadTransportConfig() (*TransportConfig, error) {
	cfg := &TransportConfig{
		Type: DefaultTransport,
		Port: DefaultPort,
		Host: "0.0.0.0",
	}

	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		switch t := TransportType(v); t {
		case TransportStdio, TransportHTTP:
			cfg.Type = t
		default:
			return nil, fmt.Errorf("invalid MCP_TRANSPORT value: %s (must be stdio or http)", v)
		}
	}

	if v := os.Getenv("MCP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MCP_PORT value: %s (must be a number)", v)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid MCP_PORT value: %d (must be between 1 and 65535)", port)
		}
		cfg.Port = port
	}

	if v := os.Getenv("MCP_HOST"); v != "" {
		cfg.Host = v
	}
	return cfg, nil
}

// HTTPAuth guards the HTTP transport. Only admins may call the tools.
type HTTPAuth struct {
	Tokens middleware.TokenVerifier
	Users  middleware.UserLookup
	Env    string
}

// Serve runs the configured transport until ctx is cancelled.
func Serve(ctx context.Context, mcpServer *server.MCPServer, cfg *TransportConfig, guard HTTPAuth, rateLimit config.RateLimitConfig, logger zerolog.Logger) error {
	switch cfg.Type {
	case TransportStdio:
		return ServeStdio(ctx, mcpServer, logger)
	case TransportHTTP:
		return ServeHTTP(ctx, mcpServer, cfg, guard, rateLimit, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}

func ServeStdio(ctx context.Context, mcpServer *server.MCPServer, logger zerolog.Logger) error {
	logger.Info().Msg("serving MCP over stdio")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ServeStdio(mcpServer); err != nil {
			errCh <- fmt.Errorf("stdio server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func ServeHTTP(ctx context.Context, mcpServer *server.MCPServer, cfg *TransportConfig, guard HTTPAuth, rateLimit config.RateLimitConfig, logger zerolog.Logger) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(mcpServer, guard, rateLimit),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("serving MCP over streamable HTTP")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		logger.Info().Msg("MCP HTTP server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// NewHTTPHandler returns the streamable HTTP endpoint behind admin
// authentication and the authenticated rate limit tier. The caller's user is
// copied into the tool context so reports follow the admin's college.
func NewHTTPHandler(mcpServer *server.MCPServer, guard HTTPAuth, rateLimit config.RateLimitConfig) http.Handler {
	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if user := middleware.UserFromContext(r.Context()); user != nil {
				return middleware.ContextWithUser(ctx, user)
			}
			return ctx
		}),
	)

	var handler http.Handler = streamable
	handler = middleware.RequireRole(guard.Env, auth.RoleAdmin)(handler)
	handler = middleware.RateLimit(rateLimit)(handler)
	handler = middleware.RequireAuth(guard.Tokens, guard.Users, guard.Env)(handler)
	return handler
}
