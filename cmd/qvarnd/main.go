// Command qvarnd serves the schema-driven JSON resource API (spec §6) over
// a PostgreSQL-backed store, following the teacher's process-wiring shape
// in cmd/hostapp: load config, build the dependency graph, serve, and
// shut down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/qvarnd-io/qvarnd/internal/config"
	"github.com/qvarnd-io/qvarnd/internal/httpx"
	"github.com/qvarnd-io/qvarnd/internal/localdb"
	"github.com/qvarnd-io/qvarnd/internal/notify"
	"github.com/qvarnd-io/qvarnd/internal/schema"
	"github.com/qvarnd-io/qvarnd/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "qvarnd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting", zap.String("node_id", cfg.NodeID), zap.String("listen_addr", cfg.ListenAddr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	state, err := localdb.OpenManager(ctx, cfg.StateDir)
	if err != nil {
		return fmt.Errorf("open local state: %w", err)
	}
	defer state.Close()

	reg := schema.NewRegistry()
	if err := reg.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap registry: %w", err)
	}
	schemaHash, err := config.LoadSchemaDir(cfg.SchemaDir, reg)
	if err != nil {
		return fmt.Errorf("load schema dir %s: %w", cfg.SchemaDir, err)
	}

	if cfg.InitDB {
		priorHash, hadHash, err := state.SchemaHash()
		if err != nil {
			return fmt.Errorf("read schema hash: %w", err)
		}
		if !hadHash || priorHash != schemaHash {
			logger.Info("applying schema", zap.String("schema_dir", cfg.SchemaDir))
			if err := store.EnsureSchema(ctx, pool, reg); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			if err := state.SetSchemaHash(schemaHash); err != nil {
				return fmt.Errorf("persist schema hash: %w", err)
			}
		} else {
			logger.Info("schema unchanged, skipping EnsureSchema")
		}
	}

	st := store.New(pool, reg, logger)
	engine := notify.NewEngine(pool)
	longPoll := notify.NewLongPoll(engine, state)

	srv := &httpx.Server{Store: st, Registry: reg, Notify: engine, LongPoll: longPoll, Log: logger}
	handler := srv.NewRouter()

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	go func() { errCh <- metricsSrv.ListenAndServe() }()
	logger.Info("serving", zap.String("http", cfg.ListenAddr), zap.String("metrics", cfg.MetricsAddr))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl
	return cfg.Build()
}
