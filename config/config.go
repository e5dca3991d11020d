package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP Server
	HTTPAddr string

	// Camera
	CameraPosition string // "back" or "front"
	ColorWidth     int
	ColorHeight    int
	DepthWidth     int
	DepthHeight    int
	TargetFPS      float64
	DepthFiltering bool
	BackHasDepth   bool
	FrontHasDepth  bool

	// Relay
	FrameQueueDepth int

	// Storage
	StorageType   string // "local" or "gcs"
	StorageDir    string
	GCSBucketName string
	GCSBaseDir    string

	// Export
	ExportPixelStride int
	ExportMaxDepthGap float64

	// Auth
	DefaultTokenExpiration time.Duration
	MaxTokenExpiration     time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		CameraPosition:         getEnv("CAMERA_POSITION", "back"),
		ColorWidth:             getIntEnv("COLOR_WIDTH", 640),
		ColorHeight:            getIntEnv("COLOR_HEIGHT", 480),
		DepthWidth:             getIntEnv("DEPTH_WIDTH", 320),
		DepthHeight:            getIntEnv("DEPTH_HEIGHT", 240),
		TargetFPS:              getFloatEnv("TARGET_FPS", 30),
		DepthFiltering:         getBoolEnv("DEPTH_FILTERING", false),
		BackHasDepth:           getBoolEnv("BACK_HAS_DEPTH", true),
		FrontHasDepth:          getBoolEnv("FRONT_HAS_DEPTH", true),
		FrameQueueDepth:        getIntEnv("FRAME_QUEUE_DEPTH", 16),
		StorageType:            getEnv("STORAGE_TYPE", "local"),
		StorageDir:             getEnv("STORAGE_DIR", "./data/exports"),
		GCSBucketName:          getEnv("GCS_BUCKET_NAME", ""),
		GCSBaseDir:             getEnv("GCS_BASE_DIR", "exports"),
		ExportPixelStride:      getIntEnv("EXPORT_PIXEL_STRIDE", 2),
		ExportMaxDepthGap:      getFloatEnv("EXPORT_MAX_DEPTH_GAP", 0.1),
		DefaultTokenExpiration: getDurationEnv("DEFAULT_TOKEN_EXPIRATION", 1*time.Hour),
		MaxTokenExpiration:     getDurationEnv("MAX_TOKEN_EXPIRATION", 24*time.Hour),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions to get environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
