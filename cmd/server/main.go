package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docfields/internal/config"
	"docfields/internal/handler"
	"docfields/internal/logger"
	_ "docfields/internal/ocr/remote"
	_ "docfields/internal/ocr/tesseract"
	"docfields/internal/port"
	"docfields/internal/repository/sqlstore"
	"docfields/internal/router"
	"docfields/internal/service"
	"docfields/internal/storage"
	s3storage "docfields/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DB.AutoMigrate {
		if err := sqlstore.MigrateUp(&cfg.DB); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	db, err := sqlstore.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Initialize repositories
	extractionRepo := sqlstore.NewExtractionRepo(db)

	// Initialize storage
	var sink port.ResultSink
	var storagePing handler.Pinger
	if cfg.S3.Enabled {
		s3Client, err := s3storage.NewClient(ctx, &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		sink = storage.NewObjectSink(s3Client, s3Client.Bucket(), cfg.S3.Prefix)
		storagePing = s3Client
	}

	// Initialize services
	pipeline, err := service.NewPipelineFromConfig(cfg, zl)
	if err != nil {
		return err
	}
	extractionSvc := service.NewExtractionService(pipeline, extractionRepo, nil, sink, zl)

	// Initialize handlers
	extractionH := handler.NewExtractionHandler(extractionSvc, cfg.Server.MaxUploadSize)
	healthH := handler.NewHealthHandler(extractionRepo, storagePing)

	// Setup router
	r := router.Setup(extractionH, healthH, cfg.CORS.AllowedOrigins, zl)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("db_driver", cfg.DB.Driver),
			zap.Strings("ocr_engines", cfg.OCR.Engines))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
