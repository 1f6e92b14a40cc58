// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/aishow/internal/api"
	"github.com/starford/aishow/internal/imageservice"
	"github.com/starford/aishow/internal/index"
	"github.com/starford/aishow/internal/mcpserver"
	"github.com/starford/aishow/internal/metadata"
	"github.com/starford/aishow/internal/models"
	"github.com/starford/aishow/internal/pngmeta"
	"github.com/starford/aishow/internal/sse"
	"github.com/starford/aishow/internal/storage"
)

// runtime holds the components every entry point shares.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	svc    *imageservice.Service
}

func (rt *runtime) Close() {
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close index", slog.String("error", err.Error()))
	}
}

func setup(opts []Option) (*runtime, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("watch", cfg.Library.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	analyzer := metadata.NewAnalyzer(pngmeta.TextDecoder{}, logger)
	svc := imageservice.NewService(store, db, analyzer, logger, imageservice.Options{
		ThumbnailSize: cfg.Library.ThumbnailSize,
		TempMaxAge:    cfg.Library.TempMaxAge,
	})

	return &runtime{cfg: cfg, logger: logger, store: store, db: db, svc: svc}, nil
}

func imageRef(img models.Image) sse.ImageRef {
	return sse.ImageRef{ID: img.ID, Filename: img.Filename}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	// Startup reconciliation: drop stray files left by interrupted uploads.
	if _, err := rt.svc.Cleanup(ctx, false); err != nil {
		logger.Warn("initial cleanup failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	rt.svc.OnEvent(func(kind string, img models.Image) {
		broker.PublishImageEvent(kind, imageRef(img))
	})

	apiRouter := api.NewRouter(rt.svc, api.RouterConfig{
		AuthEnabled:    cfg.Auth.AuthEnabled(),
		Token:          cfg.Auth.Token,
		SSEHandler:     broker,
		MaxUploadBytes: cfg.Library.MaxUploadBytes,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := rt.db.Ping(req.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Mount("/api", apiRouter)
	r.Mount("/", api.NewFileRouter(cfg.Library.UploadsPath(), cfg.Library.ThumbnailsPath()))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Library.Watch {
		g.Go(func() error {
			err := index.Watch(gCtx, rt.db, rt.store, logger, func(kind string, img models.Image) {
				broker.PublishImageEvent(kind, imageRef(img))
			})
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	rt, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(rt.svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunCleanup performs one reconciliation pass and logs its report.
func RunCleanup(ctx context.Context, pruneKeywords bool, opts ...Option) (imageservice.CleanupResult, error) {
	rt, err := setup(opts)
	if err != nil {
		return imageservice.CleanupResult{}, err
	}
	defer rt.Close()

	res, err := rt.svc.Cleanup(ctx, pruneKeywords)
	if err != nil {
		return res, fmt.Errorf("cleanup: %w", err)
	}
	rt.logger.Info("Cleanup finished",
		slog.Int("removed", res.Removed),
		slog.String("freed", res.RemovedSize),
		slog.Int("skipped", res.Skipped),
		slog.Int64("pruned_keywords", res.PrunedKeywords))
	return res, nil
}
