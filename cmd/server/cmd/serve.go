package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusevents/server/internal/api"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/config"
	"github.com/campusevents/server/internal/domain/users"
	"github.com/campusevents/server/internal/jobs"
	"github.com/campusevents/server/internal/metrics"
	"github.com/campusevents/server/internal/storage/postgres"
	"github.com/campusevents/server/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	serverHost string
	serverPort int
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the campus events API and begin accepting requests.

The server will:
- Load configuration from the environment (or --config)
- Create the configured admin account if ADMIN_EMAIL and ADMIN_PASSWORD are set
- Start the notification workers when JOBS_ENABLED is true
- Shut down gracefully on SIGINT/SIGTERM

Examples:
  server serve
  server serve --host 127.0.0.1 --port 9090
  server serve --config /etc/campus-events/config.yaml --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	return cmd
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	applyServerFlags(&cfg)

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Msg("starting campus events server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(stopCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	pool, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := bootstrapAdminUser(bootCtx, cfg, pool, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	cancel()

	dbCollector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(ctx)
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()

	if cfg.Jobs.Enabled {
		if err := jobs.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("river migrations: %w", err)
		}
	}

	router, err := api.NewRouter(cfg, logger, pool, Version, GitCommit, BuildDate)
	if err != nil {
		return fmt.Errorf("router init: %w", err)
	}

	if router.RiverClient != nil {
		riverCtx, riverCancel := context.WithCancel(ctx)
		defer riverCancel()
		if err := router.RiverClient.Start(riverCtx); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		logger.Info().Int("max_workers", cfg.Jobs.MaxWorkers).Msg("notification workers started")
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := router.RiverClient.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("river workers shutdown error")
			} else {
				logger.Info().Msg("notification workers stopped")
			}
		}()
	}

	server := newHTTPServer(cfg, router.Handler)
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return gracefulShutdown(ctx, server, errCh, logger)
}

func applyServerFlags(cfg *config.Config) {
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
}

func newHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// bootstrapAdminUser creates the configured admin unless the email is taken.
// Incomplete settings skip the step.
func bootstrapAdminUser(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger zerolog.Logger) error {
	in, ok := adminBootstrapInput(cfg.AdminBootstrap)
	if !ok {
		logger.Debug().Msg("admin bootstrap not configured; skipping")
		return nil
	}

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
	created, err := users.NewService(repo.Users(), tokens, logger).BootstrapAdmin(ctx, in)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	if !created {
		return nil
	}

	event := logger.Info().Int64("college_id", in.CollegeID)
	if !cfg.IsProduction() {
		event = event.Str("email", in.Email)
	}
	event.Msg("bootstrapped admin user")
	return nil
}

func adminBootstrapInput(b config.AdminBootstrapConfig) (users.RegisterInput, bool) {
	if b.Email == "" || b.Password == "" || b.CollegeID == 0 {
		return users.RegisterInput{}, false
	}
	return users.RegisterInput{
		Email:     b.Email,
		Password:  b.Password,
		FirstName: b.FirstName,
		LastName:  b.LastName,
		CollegeID: b.CollegeID,
		Role:      string(auth.RoleAdmin),
	}, true
}

func gracefulShutdown(ctx context.Context, server *http.Server, errCh <-chan error, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		logger.Info().Msg("context cancelled, shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
