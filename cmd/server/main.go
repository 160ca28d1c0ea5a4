package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/stallpoint/stallpulse/internal/app"
	"github.com/stallpoint/stallpulse/internal/config"
	"github.com/stallpoint/stallpulse/internal/logging"
	"github.com/stallpoint/stallpulse/internal/postgres"
	"github.com/stallpoint/stallpulse/internal/realtime"
	"github.com/stallpoint/stallpulse/internal/reconcile"
	"github.com/stallpoint/stallpulse/internal/redis"
	"github.com/stallpoint/stallpulse/internal/server"
)

func setupConfig() *config.Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	return client
}

func runGracefulShutdown(
	srv *server.Server,
	appSvc *app.Service,
	events, menu *realtime.Broadcaster,
	bridge *redis.Bridge,
) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Let in-flight reconciliations land before tearing down delivery.
		appSvc.Wait()

		if bridge != nil {
			bridge.Close()
		}
		events.Stop()
		menu.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	brandRepo := postgres.NewBrandRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	boothRepo := postgres.NewBoothRepo(pool)
	ingredientRepo := postgres.NewIngredientRepo(pool)
	menuRepo := postgres.NewMenuRepo(pool)
	boothStockRepo := postgres.NewBoothStockRepo(pool)
	saleRepo := postgres.NewSaleRepo(pool)
	movementRepo := postgres.NewMovementRepo(pool)
	accountingRepo := postgres.NewAccountingRepo(pool)

	events := realtime.NewBroadcaster(clock, cfg.MaxClientsPerChannel)
	menu := realtime.NewBroadcaster(clock, cfg.MaxClientsPerChannel)
	local := realtime.NewLocalPublisher(events, menu)

	// Without Redis, events stay on this instance. With it, every instance
	// sees every event through the pub/sub bridge.
	var (
		publisher   realtime.Publisher = local
		bridge      *redis.Bridge
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient = setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()

		publisher = redis.NewPublisher(redisClient, local)
		bridge = redis.StartBridge(context.Background(), redisClient, local)
	}

	reconciler := reconcile.New(ingredientRepo, boothStockRepo, menuRepo, movementRepo, accountingRepo, publisher, clock)

	appSvc := app.NewService(
		brandRepo, userRepo, boothRepo, ingredientRepo, menuRepo,
		boothStockRepo, saleRepo, movementRepo, accountingRepo,
		reconciler, publisher, clock,
	)

	// Pass nil explicitly to avoid a typed-nil interface in the readiness probe.
	var srv *server.Server
	if redisClient != nil {
		srv = server.NewServer(cfg, appSvc, events, menu, clock, pool, redisClient)
	} else {
		srv = server.NewServer(cfg, appSvc, events, menu, clock, pool, nil)
	}

	done := runGracefulShutdown(srv, appSvc, events, menu, bridge)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
