package httpServer

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"depthstream/internal/auth"
	"depthstream/internal/export"
	"depthstream/internal/metrics"
	"depthstream/internal/streammanager"
	"depthstream/pkg/models"
)

// Server wraps the HTTP control API with its dependencies
type Server struct {
	router        *gin.Engine
	streamManager *streammanager.Manager
	authManager   *auth.Manager
	exporter      *export.Exporter
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
}

// New creates a new HTTP server
func New(
	sm *streammanager.Manager,
	am *auth.Manager,
	exp *export.Exporter,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *Server {
	s := &Server{
		streamManager: sm,
		authManager:   am,
		exporter:      exp,
		metrics:       m,
		gatherer:      gatherer,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	router := gin.New()
	router.Use(gin.Recovery(), s.metricsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.GET("/v1/status", s.handleStatus)
		api.POST("/v1/stream/resume", s.handleResumeStream)
		api.POST("/v1/photo", s.handlePhoto)
		api.POST("/v1/camera/switch", s.handleSwitchCamera)
		api.PUT("/v1/camera/filtering", s.handleFiltering)
		api.POST("/v1/recording/start", s.handleStartRecording)
		api.POST("/v1/recording/stop", s.handleStopRecording)
		api.POST("/v1/exports", s.handleCreateExport)
		api.GET("/v1/exports", s.handleListExports)
		api.GET("/v1/exports/:exportID", s.handleGetExport)
	}

	files := router.Group("/files")
	{
		files.GET("/exports/:exportID/:name", s.handleDownload)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	s.router = router
}

// Run starts the HTTP server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// metricsMiddleware records per-request counters and latency
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start).Seconds())
	}
}

// Handler implementations

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.streamManager.Status())
}

func (s *Server) handleResumeStream(c *gin.Context) {
	s.streamManager.ResumeStream()
	c.JSON(http.StatusOK, gin.H{"mode": s.streamManager.Mode().String()})
}

func (s *Server) handlePhoto(c *gin.Context) {
	s.streamManager.StartPhotoCapture()
	c.JSON(http.StatusAccepted, gin.H{"message": "photo capture requested"})
}

func (s *Server) handleSwitchCamera(c *gin.Context) {
	err := s.streamManager.SwitchCamera()
	status := s.streamManager.Status()
	resp := models.SwitchCameraResponse{
		CameraPosition: status.CameraPosition,
		CameraError:    status.CameraError,
	}
	if err != nil {
		c.JSON(http.StatusConflict, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFiltering(c *gin.Context) {
	var req models.FilteringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.streamManager.SetDepthFiltering(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"depthFiltering": req.Enabled})
}

func (s *Server) handleStartRecording(c *gin.Context) {
	id := s.streamManager.StartRecording()
	c.JSON(http.StatusOK, models.RecordingResponse{
		RecordingID: id,
		IsRecording: true,
	})
}

func (s *Server) handleStopRecording(c *gin.Context) {
	frames, hasFrames := s.streamManager.StopRecording()
	status := s.streamManager.Status()
	c.JSON(http.StatusOK, models.RecordingResponse{
		RecordingID:       status.RecordingID,
		IsRecording:       false,
		RecordedFrames:    frames,
		HasRecordedFrames: hasFrames,
	})
}

func (s *Server) handleCreateExport(c *gin.Context) {
	frames := s.streamManager.RecordedFrames()
	rec, err := s.exporter.Export(frames)
	if err != nil {
		if errors.Is(err, export.ErrNoFramesToExport) {
			c.JSON(http.StatusConflict, gin.H{"error": "no recorded frames to export"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, err := s.authManager.GenerateDownloadToken(rec.ID, 0, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate download token"})
		return
	}

	urls := make([]string, 0, len(rec.Files))
	for _, name := range rec.Files {
		urls = append(urls, "/files/exports/"+rec.ID+"/"+name+"?token="+token.Token)
	}

	c.JSON(http.StatusCreated, models.ExportResponse{
		Export:    rec.Info(),
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt.Format(time.RFC3339),
		URLs:      urls,
	})
}

func (s *Server) handleListExports(c *gin.Context) {
	records := s.exporter.List()
	infos := make([]models.ExportInfo, len(records))
	for i, rec := range records {
		infos[i] = rec.Info()
	}
	c.JSON(http.StatusOK, models.ExportListResponse{
		Exports: infos,
		Total:   len(infos),
	})
}

func (s *Server) handleGetExport(c *gin.Context) {
	rec, ok := s.exporter.Get(c.Param("exportID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "export not found"})
		return
	}
	c.JSON(http.StatusOK, rec.Info())
}

func (s *Server) handleDownload(c *gin.Context) {
	exportID := c.Param("exportID")
	name := c.Param("name")

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if err := s.authManager.ValidateToken(token, exportID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	data, err := s.exporter.ReadFile(exportID, name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, downloadContentType(name), data)
}

// downloadContentType maps artifact filenames to MIME types
func downloadContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".obj"):
		return "model/obj"
	case strings.HasSuffix(name, ".mtl"):
		return "model/mtl"
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
