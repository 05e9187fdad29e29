package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/examtrail/pyqbank/internal/api/httpapi"
	"github.com/examtrail/pyqbank/internal/catalog"
	"github.com/examtrail/pyqbank/internal/platform/cache"
	"github.com/examtrail/pyqbank/internal/platform/config"
	"github.com/examtrail/pyqbank/internal/platform/database"
	"github.com/examtrail/pyqbank/internal/qmatrix"
	"github.com/examtrail/pyqbank/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		reader   catalog.Reader
		store    session.Store
		checkers []httpapi.HealthChecker
	)

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()

		for _, schema := range []string{catalog.Schema, session.Schema} {
			if err := db.Migrate(ctx, schema); err != nil {
				return err
			}
		}
		pgStore, err := session.NewPostgresStore(db.Pool)
		if err != nil {
			return err
		}
		store = pgStore
		reader, err = catalog.NewPostgresCatalog(db.Pool)
		if err != nil {
			return err
		}
		checkers = append(checkers, db)
		slog.Info("using postgres backend")
	} else {
		mem, err := catalog.LoadDir(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("loading catalog from %s: %w", cfg.Catalog.Path, err)
		}
		reader = mem
		store = session.NewMemoryStore()
		slog.Info("using in-memory backend", "catalog_path", cfg.Catalog.Path)
	}

	engine := session.NewEngine(session.EngineConfig{
		Catalog:               reader,
		Store:                 store,
		CompleteOnFinalSubmit: cfg.Session.CompleteOnFinalSubmit,
	})

	var matrix httpapi.MatrixBuilder = qmatrix.NewBuilder(reader)
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("connecting to cache: %w", err)
		}
		defer c.Close()

		matrix = qmatrix.NewCachedBuilder(qmatrix.NewBuilder(reader), c, 0)
		checkers = append(checkers, c)
		slog.Info("attribute-index cache enabled")
	}

	api := httpapi.NewServer(engine, matrix, checkers...)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// setupLogger installs the default slog handler per config.
func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
