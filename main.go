package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"depthstream/config"
	"depthstream/httpServer"
	"depthstream/internal/auth"
	"depthstream/internal/capture"
	"depthstream/internal/export"
	"depthstream/internal/metrics"
	"depthstream/internal/storage"
	"depthstream/internal/streammanager"
	"depthstream/pkg/models"
)

func main() {
	// Load configuration
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	logger.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("camera", cfg.CameraPosition).
		Float64("target_fps", cfg.TargetFPS).
		Str("storage", cfg.StorageType).
		Msg("starting depthstream")

	// Initialize storage
	var storageBackend storage.Storage
	if cfg.StorageType == "gcs" {
		if cfg.GCSBucketName == "" {
			logger.Fatal().Msg("GCS_BUCKET_NAME must be set when STORAGE_TYPE=gcs")
		}
		gcsStorage, err := storage.NewGCSStorage(context.Background(), cfg.GCSBucketName, cfg.GCSBaseDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize GCS storage")
		}
		storageBackend = gcsStorage
		logger.Info().Str("bucket", cfg.GCSBucketName).Str("base_dir", cfg.GCSBaseDir).Msg("storage initialized: GCS")
	} else {
		localStorage, err := storage.NewLocalStorage(cfg.StorageDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize local storage")
		}
		storageBackend = localStorage
		logger.Info().Str("dir", cfg.StorageDir).Msg("storage initialized: local")
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Initialize the capture device and controller
	device, err := capture.NewSyntheticDevice(capture.SyntheticConfig{
		ColorResolution: models.Dimensions{Width: cfg.ColorWidth, Height: cfg.ColorHeight},
		DepthResolution: models.Dimensions{Width: cfg.DepthWidth, Height: cfg.DepthHeight},
		TargetFPS:       cfg.TargetFPS,
		BackHasDepth:    cfg.BackHasDepth,
		FrontHasDepth:   cfg.FrontHasDepth,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure capture device")
	}

	position := models.CameraPosition(cfg.CameraPosition)
	if position != models.CameraPositionBack && position != models.CameraPositionFront {
		logger.Fatal().Str("camera", cfg.CameraPosition).Msg("CAMERA_POSITION must be \"back\" or \"front\"")
	}

	controller := capture.NewController(device, position, logger)
	controller.SetDepthFiltering(cfg.DepthFiltering)

	// Initialize the stream manager and wire it as the controller's consumer
	manager := streammanager.New(controller, m, cfg.FrameQueueDepth, logger)
	defer manager.Close()

	controller.SetHandlers(capture.Handlers{
		OnFrame:           manager.OnContinuousFrame,
		OnPhoto:           manager.OnPhotoResult,
		OnPositionChanged: manager.OnCameraPositionChanged,
		OnError:           manager.OnCaptureError,
	})

	// Initialize the exporter and download-token manager
	exporter := export.New(storageBackend, m, export.MeshOptions{
		PixelStride: cfg.ExportPixelStride,
		MaxDepthGap: float32(cfg.ExportMaxDepthGap),
	}, logger)
	authManager := auth.New(cfg.DefaultTokenExpiration, cfg.MaxTokenExpiration)

	// Begin continuous capture
	controller.StartStream()
	defer controller.Close()

	// Start HTTP control API (blocking)
	gin.SetMode(gin.ReleaseMode)
	httpSrv := httpServer.New(manager, authManager, exporter, m, registry)
	logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP control API listening")
	if err := httpSrv.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal().Err(err).Msg("HTTP server failed")
	}
}
