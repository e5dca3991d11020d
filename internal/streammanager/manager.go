// Package streammanager relays frames from the capture controller to
// UI-consumable state: a single apply goroutine drains a bounded delivery
// queue and maintains the latest-frame snapshot, the display mode state
// machine, and the recording buffer.
package streammanager

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"depthstream/internal/capture"
	"depthstream/internal/metrics"
	"depthstream/pkg/models"
)

// User-facing camera error messages. The unsupported-hardware case is kept
// distinct from generic reconfiguration failures so the UI can tell them apart.
const (
	MsgDeviceUnavailable   = "This device doesn't support depth capture on the selected camera."
	MsgConfigurationFailed = "Failed to reconfigure the capture session. Please try again."
)

// Mode is the display state machine
type Mode int

const (
	// ModeStreaming accepts continuous frames into the snapshot
	ModeStreaming Mode = iota
	// ModeReviewing shows the last photo result; continuous frames are
	// dropped until ResumeStream
	ModeReviewing
)

func (m Mode) String() string {
	switch m {
	case ModeStreaming:
		return "streaming"
	case ModeReviewing:
		return "reviewing"
	default:
		return "unknown"
	}
}

// CaptureController is the surface the manager drives. *capture.Controller
// implements it; tests substitute a fake.
type CaptureController interface {
	StartStream()
	CapturePhoto()
	SwitchCamera() error
	SetDepthFiltering(enabled bool)
	DepthFiltering() bool
	Position() models.CameraPosition
}

// delivery is one queued hand-off from the capture goroutine
type delivery struct {
	frame *models.CapturedFrame
	photo bool
}

// Manager is the single consumer of capture controller callbacks. All
// snapshot, flag and recording-buffer mutation happens on its apply
// goroutine; callers read through the getters.
type Manager struct {
	controller CaptureController
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	deliveries   chan delivery
	droppedQueue atomic.Uint64

	// latest is the shared captured-data holder: an atomically swapped
	// immutable frame pointer, so readers never see a torn frame
	latest atomic.Pointer[models.CapturedFrame]

	mu                sync.RWMutex
	mode              Mode
	waiting           bool // photo requested, result not yet arrived
	dataAvailable     bool // latches true on first applied frame
	recording         bool
	hasRecorded       bool
	cameraError       string
	position          models.CameraPosition
	recordingID       string
	recorded          []*models.CapturedFrame // active recording buffer
	frozen            []*models.CapturedFrame // last finished recording
	framesApplied     uint64
	droppedReviewing  uint64
	lastRecordedCount int

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates the manager and starts its apply goroutine. queueDepth bounds
// the background-to-apply hand-off; deliveries beyond it are dropped.
func New(controller CaptureController, m *metrics.Metrics, queueDepth int, logger zerolog.Logger) *Manager {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	mgr := &Manager{
		controller: controller,
		metrics:    m,
		logger:     logger.With().Str("component", "streammanager").Logger(),
		deliveries: make(chan delivery, queueDepth),
		mode:       ModeStreaming,
		position:   controller.Position(),
		done:       make(chan struct{}),
	}
	mgr.wg.Add(1)
	go mgr.applyLoop()
	return mgr
}

// Close stops the apply goroutine. Pending deliveries are discarded.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

// OnContinuousFrame is the controller's continuous-frame handler. It never
// blocks: when the delivery queue is full the frame is dropped and counted.
func (m *Manager) OnContinuousFrame(frame *models.CapturedFrame) {
	m.metrics.RecordFrameDelivered()
	select {
	case m.deliveries <- delivery{frame: frame}:
	default:
		m.droppedQueue.Add(1)
		m.metrics.RecordFrameDropped(metrics.DropReasonQueueFull)
	}
}

// OnPhotoResult is the controller's photo handler. Photo results must land,
// so unlike continuous frames the send blocks until queued.
func (m *Manager) OnPhotoResult(frame *models.CapturedFrame) {
	select {
	case m.deliveries <- delivery{frame: frame, photo: true}:
	case <-m.done:
	}
}

// OnCameraPositionChanged is the controller's position notification
func (m *Manager) OnCameraPositionChanged(position models.CameraPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = position
	m.cameraError = ""
}

// OnCaptureError is the controller's out-of-band error notification. Errors
// are flattened to a single user-facing string.
func (m *Manager) OnCaptureError(err error) {
	m.metrics.RecordCaptureError()
	m.logger.Error().Err(err).Msg("capture error")
	m.mu.Lock()
	defer m.mu.Unlock()
	if errors.Is(err, capture.ErrDeviceUnavailable) {
		m.cameraError = MsgDeviceUnavailable
	} else {
		m.cameraError = MsgConfigurationFailed
	}
}

func (m *Manager) applyLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case d := <-m.deliveries:
			if d.photo {
				m.applyPhoto(d.frame)
			} else {
				m.applyFrame(d.frame)
			}
		}
	}
}

// applyFrame handles one continuous frame on the apply goroutine
func (m *Manager) applyFrame(frame *models.CapturedFrame) {
	m.mu.Lock()
	if m.mode == ModeReviewing {
		m.droppedReviewing++
		m.mu.Unlock()
		m.metrics.RecordFrameDropped(metrics.DropReasonReviewing)
		return
	}
	if m.recording {
		m.recorded = append(m.recorded, frame)
		m.lastRecordedCount = len(m.recorded)
	}
	m.dataAvailable = true
	m.framesApplied++
	m.mu.Unlock()

	m.latest.Store(frame)
	m.metrics.RecordFrameApplied(time.Since(frame.Timestamp).Seconds())
}

// applyPhoto handles one photo result on the apply goroutine. The photo
// always wins: it replaces the snapshot and flips the mode to Reviewing so
// later continuous frames are dropped until ResumeStream.
func (m *Manager) applyPhoto(frame *models.CapturedFrame) {
	m.mu.Lock()
	m.waiting = false
	m.mode = ModeReviewing
	m.dataAvailable = true
	m.mu.Unlock()

	m.latest.Store(frame)
	m.metrics.RecordPhotoResult()
	m.logger.Info().Uint64("seq", frame.Seq).Msg("photo result applied")
}

// StartPhotoCapture requests a still capture and marks the gap between
// request and result with the waiting flag
func (m *Manager) StartPhotoCapture() {
	m.mu.Lock()
	m.waiting = true
	m.mu.Unlock()
	m.metrics.RecordPhotoRequest()
	m.controller.CapturePhoto()
}

// ResumeStream leaves reviewing mode, clears the waiting flag and
// restarts continuous delivery. Safe to call regardless of prior state and
// idempotent under repeated calls.
func (m *Manager) ResumeStream() {
	m.mu.Lock()
	m.mode = ModeStreaming
	m.waiting = false
	m.mu.Unlock()
	m.controller.StartStream()
}

// StartRecording begins a new recording session, always resetting the
// buffer, even when already recording
func (m *Manager) StartRecording() string {
	m.mu.Lock()
	m.recorded = nil
	m.lastRecordedCount = 0
	m.recording = true
	m.recordingID = uuid.NewString()
	id := m.recordingID
	m.mu.Unlock()
	m.metrics.RecordRecordingStart()
	m.logger.Info().Str("recording_id", id).Msg("recording started")
	return id
}

// StopRecording freezes the buffer for export and reports whether any
// frames were recorded
func (m *Manager) StopRecording() (frames int, hasFrames bool) {
	m.mu.Lock()
	if m.recording {
		m.recording = false
		m.frozen = m.recorded
		m.recorded = nil
	}
	m.hasRecorded = len(m.frozen) > 0
	frames = len(m.frozen)
	hasFrames = m.hasRecorded
	id := m.recordingID
	m.mu.Unlock()
	m.metrics.RecordRecordingStop(frames)
	m.logger.Info().Str("recording_id", id).Int("frames", frames).Msg("recording stopped")
	return frames, hasFrames
}

// SwitchCamera delegates to the controller, translating failures to the
// user-facing cameraError string. The camera position is unchanged on error.
func (m *Manager) SwitchCamera() error {
	err := m.controller.SwitchCamera()

	m.mu.Lock()
	switch {
	case err == nil:
		m.cameraError = ""
		m.position = m.controller.Position()
	case errors.Is(err, capture.ErrDeviceUnavailable):
		m.cameraError = MsgDeviceUnavailable
	default:
		m.cameraError = MsgConfigurationFailed
	}
	m.mu.Unlock()

	switch {
	case err == nil:
		m.metrics.RecordCameraSwitch(metrics.SwitchResultOK)
	case errors.Is(err, capture.ErrDeviceUnavailable):
		m.metrics.RecordCameraSwitch(metrics.SwitchResultDeviceUnavailable)
	default:
		m.metrics.RecordCameraSwitch(metrics.SwitchResultConfigurationFailed)
	}
	return err
}

// SetDepthFiltering toggles the controller's depth smoothing filter
func (m *Manager) SetDepthFiltering(enabled bool) {
	m.controller.SetDepthFiltering(enabled)
}

// Latest returns the current frame snapshot, or nil before the first
// delivery. The returned frame is immutable.
func (m *Manager) Latest() *models.CapturedFrame {
	return m.latest.Load()
}

// RecordedFrames returns the frames of the last finished recording, in
// capture order
func (m *Manager) RecordedFrames() []*models.CapturedFrame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.CapturedFrame, len(m.frozen))
	copy(out, m.frozen)
	return out
}

// Mode returns the current display mode
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Status snapshots all UI-facing flags and counters
func (m *Manager) Status() models.StatusResponse {
	m.mu.RLock()
	recordedFrames := len(m.recorded)
	if !m.recording {
		recordedFrames = len(m.frozen)
	}
	st := models.StatusResponse{
		Mode:                     m.mode.String(),
		DataAvailable:            m.dataAvailable,
		IsRecording:              m.recording,
		HasRecordedFrames:        m.hasRecorded,
		WaitingForCapture:        m.waiting,
		ProcessingCapturedResult: m.mode == ModeReviewing,
		CameraError:              m.cameraError,
		CameraPosition:           m.position,
		DepthFiltering:           m.controller.DepthFiltering(),
		RecordingID:              m.recordingID,
		RecordedFrames:           recordedFrames,
		FramesApplied:            m.framesApplied,
		FramesDroppedReviewing:   m.droppedReviewing,
		FramesDroppedQueue:       m.droppedQueue.Load(),
	}
	m.mu.RUnlock()

	if f := m.latest.Load(); f != nil {
		st.LatestFrame = &models.FrameInfo{
			Seq:                 f.Seq,
			Timestamp:           f.Timestamp.Format(time.RFC3339Nano),
			DepthDimensions:     f.DepthDimensions(),
			ColorDimensions:     f.ColorDimensions,
			ReferenceDimensions: f.ReferenceDimensions,
			Intrinsics:          f.Intrinsics,
		}
	}
	return st
}
