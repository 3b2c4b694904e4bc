package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/chat"
	"github.com/wheelroom/api/internal/config"
	"github.com/wheelroom/api/internal/database"
	"github.com/wheelroom/api/internal/handler/health"
	"github.com/wheelroom/api/internal/history"
	"github.com/wheelroom/api/internal/identity"
	"github.com/wheelroom/api/internal/keylock"
	"github.com/wheelroom/api/internal/migrations"
	"github.com/wheelroom/api/internal/room"
	"github.com/wheelroom/api/internal/server"
	"github.com/wheelroom/api/internal/spin"
	"github.com/wheelroom/api/internal/wheel"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "migrations_applied", applied)

	checks := map[string]health.Checker{"sqlite": dbChecker{db}}

	// --- Broadcast ---
	broker := broadcast.NewBroker(cfg.SubscriberBuffer)
	defer broker.Close()

	var (
		publisher broadcast.Publisher = broker
		rdb       *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		publisher = broadcast.NewRedisPublisher(rdb, cfg.RedisChannelPrefix)
		checks["redis"] = redisChecker{rdb}
		logger.Info("connected to redis", "channel_prefix", cfg.RedisChannelPrefix)
	} else {
		logger.Info("redis not configured, broadcasting in-process")
	}

	// --- Domain ---
	locks := keylock.New()
	rooms := room.NewRegistry(room.NewSQLiteStore(db), locks)
	wheels := wheel.NewStore(db, rooms, locks)
	hist := history.NewStore(db)
	spins := spin.NewCoordinator(rooms, wheels, hist, publisher, locks, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:      logger,
		Rooms:       rooms,
		Wheels:      wheels,
		History:     hist,
		Chat:        chat.NewService(db, rooms),
		Spins:       spins,
		Identity:    identity.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Broker:      broker,
		Publisher:   publisher,
		SpinLimiter: server.NewLimiter(cfg.SpinRate, cfg.SpinBurst),
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	if rdb != nil {
		g.Go(func() error {
			return broadcast.Relay(gctx, rdb, cfg.RedisChannelPrefix, broker, logger)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownErr := srv.Shutdown(context.Background())
		if shutdownErr != nil {
			shutdownErr = fmt.Errorf("shutting down http server: %w", shutdownErr)
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		drainErr := spins.Drain(drainCtx)
		if drainErr != nil {
			logger.Warn("pending spin results dropped", "pending", spins.Pending(), "error", drainErr)
			drainErr = fmt.Errorf("draining spins: %w", drainErr)
		}
		return errors.Join(shutdownErr, drainErr)
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
