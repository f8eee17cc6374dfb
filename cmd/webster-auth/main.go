package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	webster "github.com/babymilooo/webster-backend"
	"github.com/babymilooo/webster-backend/internal/config"
	"github.com/babymilooo/webster-backend/internal/httpapi"
	"github.com/babymilooo/webster-backend/mail"
	promexport "github.com/babymilooo/webster-backend/metrics/export/prometheus"
	"github.com/babymilooo/webster-backend/storage/memory"
	"github.com/babymilooo/webster-backend/storage/mongo"
	"github.com/babymilooo/webster-backend/storage/postgres"
	"github.com/redis/go-redis/v9"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env, "store", cfg.Store.Driver)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}
	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := webster.New().
		WithConfig(cfg.Engine()).
		WithIdentityStore(store).
		WithLogger(log).
		WithMailer(newMailer(cfg, log))

	if cfg.Audit.Enabled {
		builder.WithAuditSink(webster.NewSlogSink(log.With(slog.String("component", "audit"))))
	}

	if cfg.Redis.URL != "" {
		client, err := openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		builder.WithRedis(client)
		log.Info("redis_connected")
	} else {
		log.Warn("redis not configured, revocations are process-local and throttles are off")
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	var ready atomic.Bool
	opts := httpapi.Options{
		Logger:      log,
		Cookies:     engine.Cookies(),
		FrontendURL: cfg.FrontendURL,
		TrustProxy:  cfg.HTTP.TrustProxy,
		Ready:       ready.Load,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = promexport.NewExporter(engine).Handler()
		opts.MetricsPath = cfg.Metrics.Path
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           httpapi.NewRouter(engine, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()
	ready.Store(true)

	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			return fmt.Errorf("http serve: %w", err)
		}
	}

	ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = srv.Close()
	}
	return nil
}

// openStore connects the configured identity store. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (webster.IdentityStore, func(), error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Store.Driver {
	case config.DriverMongo:
		m, err := mongo.New(dialCtx, cfg.Store.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		log.Info("mongo_connected")
		return m, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Close(closeCtx)
		}, nil

	case config.DriverPostgres:
		pg, err := postgres.New(dialCtx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Store.Migrate {
			if err := pg.Migrate(dialCtx); err != nil {
				pg.Close()
				return nil, nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		log.Info("postgres_connected")
		return pg, pg.Close, nil

	case config.DriverMemory:
		log.Warn("using in-memory identity store, accounts are lost on restart")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func newMailer(cfg *config.Config, log *slog.Logger) webster.Mailer {
	if !cfg.MailEnabled() {
		return mail.LogSender{Logger: log}
	}
	return mail.NewSender(cfg.SMTPSender())
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
