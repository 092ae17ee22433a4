// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vertext/internal/api"
	"github.com/starford/vertext/internal/format"
	"github.com/starford/vertext/internal/mcpserver"
	"github.com/starford/vertext/internal/metrics"
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/prefs"
	"github.com/starford/vertext/internal/session"
	"github.com/starford/vertext/internal/sse"
	"github.com/starford/vertext/internal/storage"
	"github.com/starford/vertext/internal/watch"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func openStorage(root string) (*storage.FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// Run starts the HTTP host with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_root", cfg.Storage.Root),
		slog.String("prefs_path", cfg.Prefs.Path),
		slog.String("save_format", cfg.Editor.Format().String()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := openStorage(cfg.Storage.Root)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Prefs.Path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	db, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		return fmt.Errorf("init prefs: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	broker := sse.NewBroker(cfg.Editor.StatsThrottle)
	defer broker.Close()

	remote := api.NewRemoteSurface(broker)
	sess := session.New(remote, store,
		session.WithLogger(logger),
		session.WithMetrics(m),
		session.WithPrefs(db),
		session.WithNotifier(broker),
		session.WithSaveFormat(cfg.Editor.Format()),
		session.WithDefaults(models.Direction(cfg.Editor.Direction), models.Theme(cfg.Editor.Theme)),
		session.WithLineBreak(cfg.Editor.LineBreak),
	)
	if err := sess.Mount(ctx); err != nil {
		return fmt.Errorf("mount session: %w", err)
	}

	h := api.NewHandler(sess, remote, store, cfg.Editor.Format())
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := os.Stat(store.Root()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"storage unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())

	r.With(api.MetricsMiddleware(m)).Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Storage.Watch {
		g.Go(func() error {
			err := watch.Watch(gCtx, store.Root(), cfg.Editor.WatchSettle, logger, func(kind, path string) {
				rel, err := store.Rel(path)
				if err != nil {
					return
				}
				sess.ExternalChange(gCtx, kind, rel)
			})
			if err != nil {
				logger.Warn("file watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Unblock the watcher when the signal arrived first.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	if sess.Snapshot().Dirty {
		logger.Warn("exiting with unsaved changes", slog.String("path", sess.Snapshot().SourcePath))
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the format tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger(os.Stderr)
	slog.SetDefault(logger)

	store, err := openStorage(app.config.Storage.Root)
	if err != nil {
		return err
	}
	codec := format.New(format.WithLogger(logger))

	logger.Info("MCP server starting", slog.String("storage_root", store.Root()))
	return mcpserver.New(store, codec, app.version).ServeStdio()
}
