package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for frame delivery
const (
	DropReasonQueueFull = "queue_full"
	DropReasonReviewing = "reviewing"
)

// Camera switch outcomes
const (
	SwitchResultOK                  = "ok"
	SwitchResultDeviceUnavailable   = "device_unavailable"
	SwitchResultConfigurationFailed = "configuration_failed"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Frame metrics
	FramesDelivered prometheus.Counter
	FramesApplied   prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	FrameLagSeconds prometheus.Histogram

	// Photo metrics
	PhotoRequests prometheus.Counter
	PhotoResults  prometheus.Counter

	// Camera metrics
	CameraSwitches *prometheus.CounterVec
	CaptureErrors  prometheus.Counter

	// Recording metrics
	RecordingsStarted prometheus.Counter
	RecordingsStopped prometheus.Counter
	RecordingFrames   prometheus.Histogram

	// Export metrics
	ExportsCreated  prometheus.Counter
	ExportFailures  prometheus.Counter
	ExportDuration  prometheus.Histogram
	ExportSizeBytes prometheus.Histogram
	ExportTriangles prometheus.Histogram

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with the given registerer.
// Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_frames_delivered_total",
			Help: "Continuous frames delivered by the capture controller",
		}),
		FramesApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_frames_applied_total",
			Help: "Frames applied to the shared snapshot",
		}),
		FramesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depthstream_frames_dropped_total",
				Help: "Frames dropped before reaching the shared snapshot",
			},
			[]string{"reason"},
		),
		FrameLagSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "depthstream_frame_lag_seconds",
			Help:    "Delay between capture and apply",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),

		PhotoRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_photo_requests_total",
			Help: "Still capture requests",
		}),
		PhotoResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_photo_results_total",
			Help: "Still capture results applied",
		}),

		CameraSwitches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depthstream_camera_switches_total",
				Help: "Camera switch attempts by outcome",
			},
			[]string{"result"},
		),
		CaptureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_capture_errors_total",
			Help: "Asynchronous capture session errors",
		}),

		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_recordings_started_total",
			Help: "Recording sessions started",
		}),
		RecordingsStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_recordings_stopped_total",
			Help: "Recording sessions stopped",
		}),
		RecordingFrames: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "depthstream_recording_frames",
			Help:    "Frames accumulated per recording session",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
		}),

		ExportsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_exports_created_total",
			Help: "Mesh exports written",
		}),
		ExportFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "depthstream_export_failures_total",
			Help: "Mesh exports that failed",
		}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "depthstream_export_duration_seconds",
			Help:    "Time spent building and writing an export",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		ExportSizeBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "depthstream_export_size_bytes",
			Help:    "Total size of an export's artifacts",
			Buckets: prometheus.ExponentialBuckets(10240, 2, 12), // 10KB to ~20MB
		}),
		ExportTriangles: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "depthstream_export_triangles",
			Help:    "Triangles per exported mesh",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depthstream_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "depthstream_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordFrameDelivered records a frame arriving from the controller
func (m *Metrics) RecordFrameDelivered() {
	m.FramesDelivered.Inc()
}

// RecordFrameApplied records a frame reaching the shared snapshot
func (m *Metrics) RecordFrameApplied(lagSeconds float64) {
	m.FramesApplied.Inc()
	m.FrameLagSeconds.Observe(lagSeconds)
}

// RecordFrameDropped records a dropped frame
func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordPhotoRequest records a still capture request
func (m *Metrics) RecordPhotoRequest() {
	m.PhotoRequests.Inc()
}

// RecordPhotoResult records a still capture result being applied
func (m *Metrics) RecordPhotoResult() {
	m.PhotoResults.Inc()
}

// RecordCameraSwitch records a camera switch attempt
func (m *Metrics) RecordCameraSwitch(result string) {
	m.CameraSwitches.WithLabelValues(result).Inc()
}

// RecordCaptureError records an asynchronous capture error
func (m *Metrics) RecordCaptureError() {
	m.CaptureErrors.Inc()
}

// RecordRecordingStart records a recording session starting
func (m *Metrics) RecordRecordingStart() {
	m.RecordingsStarted.Inc()
}

// RecordRecordingStop records a recording session stopping
func (m *Metrics) RecordRecordingStop(frames int) {
	m.RecordingsStopped.Inc()
	m.RecordingFrames.Observe(float64(frames))
}

// RecordExport records a finished export
func (m *Metrics) RecordExport(durationSeconds float64, sizeBytes int64, triangles int) {
	m.ExportsCreated.Inc()
	m.ExportDuration.Observe(durationSeconds)
	m.ExportSizeBytes.Observe(float64(sizeBytes))
	m.ExportTriangles.Observe(float64(triangles))
}

// RecordExportFailure records a failed export
func (m *Metrics) RecordExportFailure() {
	m.ExportFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, statusCodeToString(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// statusCodeToString converts an HTTP status code to a string
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
