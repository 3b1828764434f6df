package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmotablas-service/internal/app"
	"cosmotablas-service/internal/config"
	"cosmotablas-service/internal/infra/memory"
	"cosmotablas-service/internal/infra/postgres"
	redisboards "cosmotablas-service/internal/infra/redis"
	"cosmotablas-service/internal/metrics"
	transport "cosmotablas-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the gateway server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the records gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, *port, logger)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, portFlag string, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var (
		records  app.RecordRepository
		mistakes app.MistakeRepository
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		records = postgres.NewRecordRepository(pool)
		mistakes = postgres.NewMistakeRepository(pool)
	} else {
		logger.Warn("postgres_not_configured", "fallback", "memory")
		records = memory.NewRecordRepository()
		mistakes = memory.NewMistakeRepository()
	}

	recorder := metrics.NewRecorder()
	boardSize := config.IntOr(cfg.Leaderboard.TopN, app.DefaultBoardSize)
	loader := app.NewBoardLoader(records, mistakes, boardSize, config.IntOr(cfg.Leaderboard.TopMistakes, app.DefaultGlobalMistakes))
	cacheTTL := config.TTLDuration(cfg.Leaderboard.CacheTTL, 30*time.Second)

	var boards app.BoardRepository
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		boards = redisboards.NewBoardRepository(redisClient, loader, cacheTTL, recorder)
	} else {
		boards = memory.NewBoardRepository(loader, cacheTTL, recorder)
	}

	gateway := app.NewGatewayService(records, mistakes, boards,
		app.WithHub(app.NewBoardHub()),
		app.WithMetrics(recorder),
		app.WithGatewayLogger(logger),
		app.WithBoardSize(boardSize),
	)
	handler := transport.NewHandler(gateway,
		transport.WithLogger(logger),
		transport.WithMetrics(recorder),
		transport.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server_starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("server_shutting_down", "cause", "signal")
	case <-ctx.Done():
		logger.Info("server_shutting_down", "cause", "context")
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
