package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fusionn-batch/internal/backend"
	"github.com/fusionn-batch/internal/batch"
	"github.com/fusionn-batch/internal/client/apprise"
	"github.com/fusionn-batch/internal/config"
	"github.com/fusionn-batch/internal/handler"
	"github.com/fusionn-batch/internal/job"
	"github.com/fusionn-batch/internal/language"
	"github.com/fusionn-batch/internal/notify"
	"github.com/fusionn-batch/internal/output"
	"github.com/fusionn-batch/internal/service/processor"
	"github.com/fusionn-batch/internal/validate"
	"github.com/fusionn-batch/internal/version"
	"github.com/fusionn-batch/pkg/logger"
)

func main() {
	// Initialize logger
	isDev := os.Getenv("ENV") != "production"
	logger.Init(isDev)
	defer logger.Sync()

	version.PrintBanner(nil)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	logger.Infof("📁 Loading config: %s", configPath)
	cfgMgr, err := config.NewManager(configPath)
	if err != nil {
		logger.Fatalf("❌ Config error: %v", err)
	}
	defer cfgMgr.Stop()
	cfg := cfgMgr.Get()

	// Notifications
	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.Apprise.Enabled {
		sinks = append(sinks, apprise.NewClient(cfg.Apprise))
		logger.Infof("🔔 Notifications: enabled (key=%s)", cfg.Apprise.Key)
	} else {
		logger.Info("🔔 Notifications: log only")
	}
	notifier := notify.NewDispatcher(64, sinks...)
	defer notifier.Close()

	// Validators follow config reloads
	singleValidator := validate.New(validate.TranscriptionConstraints(cfg.Constraints.Transcription))
	batchValidator := validate.New(validate.BatchConstraints(cfg.Constraints.Batch))
	cfgMgr.OnChange(func(_, cur *config.Config) {
		singleValidator.Set(validate.TranscriptionConstraints(cur.Constraints.Transcription))
		batchValidator.Set(validate.BatchConstraints(cur.Constraints.Batch))
		logger.Info("📋 Upload constraints updated")
	})

	procBackend, err := newBackend(cfg)
	if err != nil {
		logger.Fatalf("❌ Backend error: %v", err)
	}

	assembler := output.New(output.FormatsFromConfig(cfg.Output))
	stepTimeout := time.Duration(cfg.Backend.StepTimeoutMs) * time.Millisecond

	coordinator := batch.New(batchValidator, procBackend, assembler, notifier,
		batch.WithAdvanceThreshold(cfg.Batch.AdvanceThreshold),
		batch.WithStepTimeout(stepTimeout),
	)
	proc := processor.New(singleValidator, procBackend, assembler, notifier, stepTimeout)

	catalog := language.NewCatalog(language.FromConfig(cfg.Translate.Languages))
	selection := language.NewSelection()
	defer selection.Destroy()

	// Background runs are cancelled on shutdown, failing active jobs
	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	// Initialize HTTP server
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	// Register routes
	h := handler.New(runCtx, handler.Deps{
		Batch:           coordinator,
		Processor:       proc,
		SingleValidator: singleValidator,
		BatchValidator:  batchValidator,
		Catalog:         catalog,
		Selection:       selection,
	})
	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second, // multipart uploads
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Print startup info
	logger.Info("")
	logger.Infof("⚙️  Backend: %s", cfg.Backend.Provider)
	logger.Infof("🌐 Languages: %d available", len(catalog.All()))
	if cfg.Translate.RateLimitRPM > 0 {
		logger.Infof("🚦 Rate limit: %d RPM", cfg.Translate.RateLimitRPM)
	}
	logger.Infof("📦 Batch: up to %d files, next file at %.0f%%", cfg.Constraints.Batch.MaxFiles, cfg.Batch.AdvanceThreshold)
	logger.Info("")
	logger.Infof("🌐 API server: http://localhost:%d", cfg.Server.Port)
	logger.Infof("   POST /api/v1/transcribe  - Transcribe one file")
	logger.Infof("   POST /api/v1/translate   - Translate one file")
	logger.Infof("   POST /api/v1/batch       - Start a batch")
	logger.Infof("   GET  /api/v1/batch       - Batch progress")
	logger.Info("")
	logger.Info("────────────────────────────────────────────────────────────────")
	logger.Info("✅  Ready! Waiting for uploads...")
	logger.Info("────────────────────────────────────────────────────────────────")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("")
	logger.Info("🛑 Shutting down...")

	stopRuns()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("❌ Shutdown error: %v", err)
	}

	logger.Info("👋 Goodbye!")
}

func newBackend(cfg *config.Config) (job.Backend, error) {
	switch cfg.Backend.Provider {
	case "simulated", "":
		return backend.NewSimulated(cfg.Backend, cfg.Translate.RateLimitRPM), nil
	case "remote":
		if cfg.Backend.BaseURL == "" {
			return nil, fmt.Errorf("backend.base_url is required for the remote provider")
		}
		return backend.NewRemote(cfg.Backend), nil
	default:
		return nil, fmt.Errorf("unknown backend provider: %s", cfg.Backend.Provider)
	}
}

// requestLogger returns a gin middleware for logging HTTP requests
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if (path != "/api/v1/health" && path != "/api/v1/batch") || status >= 400 {
			latency := time.Since(start)
			logger.Debugf("HTTP %s %s → %d (%v)", c.Request.Method, path, status, latency)
		}
	}
}
