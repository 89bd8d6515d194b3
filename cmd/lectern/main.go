package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/config"
	"github.com/lectern-labs/lectern/internal/db"
	dbRedis "github.com/lectern-labs/lectern/internal/db/redis"
	dbValkey "github.com/lectern-labs/lectern/internal/db/valkey"
	"github.com/lectern-labs/lectern/internal/domain"
	"github.com/lectern-labs/lectern/internal/extract"
	logpkg "github.com/lectern-labs/lectern/internal/logger"
	"github.com/lectern-labs/lectern/internal/metrics"
	"github.com/lectern-labs/lectern/internal/remote/redisroom"
	unreadrepo "github.com/lectern-labs/lectern/internal/repository/unread"
	"github.com/lectern-labs/lectern/internal/transport/httpapi"
	annotateuc "github.com/lectern-labs/lectern/internal/usecase/annotate"
	healthuc "github.com/lectern-labs/lectern/internal/usecase/health"
	layoutuc "github.com/lectern-labs/lectern/internal/usecase/layout"
	queryuc "github.com/lectern-labs/lectern/internal/usecase/query"
	reconcileuc "github.com/lectern-labs/lectern/internal/usecase/reconcile"
	textsearchuc "github.com/lectern-labs/lectern/internal/usecase/textsearch"
	"github.com/lectern-labs/lectern/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lectern engine",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("document_room", cfg.Document.RoomID),
		zap.String("user", cfg.Remote.UserID),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "valkey":
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register engine metrics explicitly (no init())
	metrics.RegisterEngineMetrics()

	// Remote room provider over the shared store
	provider := redisroom.New(store, cfg.Remote.UserID, logger)
	if err := provider.Start(ctx); err != nil {
		logger.Fatal("Failed to start room provider", zap.Error(err))
	}
	defer provider.Stop()

	// Unread counts are recomputed per reconciliation pass; cache them.
	unreadCache := unreadrepo.New(provider, metrics.UnreadCacheTotal, logger)

	// Reconciler — runs until shutdown
	reconciler := reconcileuc.New(
		provider, unreadCache, cfg.Document.RoomID, cfg.Remote.UserID,
		metrics.ReconcilePassesTotal, logger,
	).WithPollInterval(time.Duration(cfg.Remote.PollIntervalMs) * time.Millisecond)
	go func() {
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Reconciler stopped", zap.Error(err))
		}
	}()

	// Document text source for full-text search
	var corpus textsearchuc.Corpus = extract.Static{}
	var indexChecker healthuc.IndexChecker = emptyIndexChecker{}
	if cfg.Document.PDFPath != "" {
		pdfDoc, err := extract.OpenPDF(cfg.Document.PDFPath, logger)
		if err != nil {
			logger.Fatal("Failed to open document", zap.String("path", cfg.Document.PDFPath), zap.Error(err))
		}
		defer func() { _ = pdfDoc.Close() }()
		go func() {
			if err := pdfDoc.ExtractAll(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Text extraction failed", zap.Error(err))
			}
		}()
		corpus = pdfDoc
		indexChecker = pdfDoc
	}

	// Create use case services
	querySvc := queryuc.New(reconciler, provider, cfg.Remote.UserID, logger)
	searchSvc := textsearchuc.New(corpus, metrics.SearchPagesScannedTotal, logger)
	layoutSvc := layoutuc.New(metrics.LayoutPassesTotal, metrics.LayoutScootchesTotal, logger)
	annotateSvc := annotateuc.New(
		provider, cfg.Document.RoomID, cfg.Remote.UserID, cfg.Remote.DeviceID, logger,
	)
	healthSvc := healthuc.New(store, indexChecker)

	server := httpapi.NewServer(
		querySvc, searchSvc, layoutSvc, annotateSvc, healthSvc,
		cfg.Document.RoomID, cfg.Search.MaxResults, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// emptyIndexChecker reports the indexing state while no document is configured.
type emptyIndexChecker struct{}

func (emptyIndexChecker) IndexHealth(context.Context) error {
	return fmt.Errorf("no document configured: %w", domain.ErrIndexing)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
