package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"canvasdesk/internal/auth"
	"canvasdesk/internal/config"
	repo "canvasdesk/internal/domain/repositories/workspace"
	"canvasdesk/internal/handler"
	"canvasdesk/internal/middleware"
	"canvasdesk/internal/repository/local"
	"canvasdesk/internal/repository/postgres"
	"canvasdesk/internal/session"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	if path := os.Getenv("CANVASDESK_CONFIG"); path != "" {
		ws, err := config.LoadWorkspaceFile(path, cfg.Workspace)
		if err != nil {
			log.Fatalf("Failed to load workspace config: %v", err)
		}
		cfg.Workspace = ws
	}
	if err := cfg.Workspace.Validate(); err != nil {
		log.Fatalf("Invalid workspace config: %v", err)
	}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOutput io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, config.MaxLogFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"max_loaded_canvases", cfg.Workspace.MaxLoadedCanvases,
		"divergence_policy", cfg.Workspace.DivergencePolicy,
	)

	ctx := context.Background()

	// Local backend (always available)
	localStore, err := local.Open(cfg.LocalStorePath, logger)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer localStore.Close()

	// Remote backend (optional)
	var remote repo.Store
	if cfg.DatabaseURL != "" {
		pool, err := connectRemote(ctx, cfg, logger)
		if err != nil {
			// Sessions still work; everything stays on the Local backend
			logger.Warn("remote backend unavailable, serving from local store only", "error", err)
		} else {
			defer pool.Close()
			remote = postgres.NewStore(&postgres.RepositoryConfig{
				Pool:   pool,
				Tables: postgres.NewTableNames(cfg.TablePrefix),
				Logger: logger,
			})
		}
	} else {
		logger.Info("no DATABASE_URL set, serving from local store only")
	}

	// Optional JWT verification; without it every request is the anonymous owner
	var verifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		v, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer v.Close()
		verifier = v
	}

	registry := session.NewRegistry(remote, localStore, cfg.Workspace, logger)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	origins := strings.Split(cfg.CORSOrigins, ",")
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, registry, handler.OriginPatterns(origins), logger)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Logging → Auth → Routes
	h = middleware.OptionalAuth(verifier, logger)(h)
	h = middleware.RequestLogger(logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", handler.CanvasIDHeader, handler.LastEventIDHeader},
		ExposedHeaders:   []string{handler.CanvasIDHeader, handler.LastEventIDHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived event streams
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	// Persist unsaved edits before the stores close
	registry.Close(shutdownCtx)
	logger.Info("server stopped")
}

// connectRemote opens the pool, checks the database is reachable and makes
// sure the schema exists.
func connectRemote(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := postgres.Ping(pingCtx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	if err := postgres.EnsureSchema(ctx, pool, postgres.NewTableNames(cfg.TablePrefix)); err != nil {
		pool.Close()
		return nil, err
	}

	stat := pool.Stat()
	logger.Info("database connected",
		"max_conns", stat.MaxConns(),
		"total_conns", stat.TotalConns(),
	)
	return pool, nil
}
