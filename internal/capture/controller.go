package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"depthstream/pkg/models"
)

// Handlers is the controller's delivery contract. OnFrame and OnPhoto may be
// invoked from background goroutines; consumers serialize on their side.
// Handlers must be set before StartStream and not changed afterwards.
type Handlers struct {
	// OnFrame is invoked once per continuous frame, bounded by the
	// session's frame rate
	OnFrame func(*models.CapturedFrame)
	// OnPhoto is invoked at most once per CapturePhoto request
	OnPhoto func(*models.CapturedFrame)
	// OnPositionChanged is invoked after a successful camera switch
	OnPositionChanged func(models.CameraPosition)
	// OnError is invoked for asynchronous session failures
	OnError func(error)
}

// Controller owns the capture session for the currently selected camera
// position and produces the continuous frame stream and photo snapshots on a
// background goroutine.
type Controller struct {
	device Device
	logger zerolog.Logger

	filtering atomic.Bool

	mu        sync.Mutex
	handlers  Handlers
	position  models.CameraPosition
	session   Session
	streaming bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewController creates a controller for the device, starting at the given
// camera position. No session is opened until StartStream.
func NewController(device Device, position models.CameraPosition, logger zerolog.Logger) *Controller {
	return &Controller{
		device:   device,
		position: position,
		logger:   logger.With().Str("component", "capture").Logger(),
	}
}

// SetHandlers installs the delivery callbacks. Must be called before
// StartStream.
func (c *Controller) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

// StartStream begins continuous frame delivery on a background goroutine.
// Starting an already-running stream is a no-op. Session-open failures are
// reported through OnError rather than returned.
func (c *Controller) StartStream() {
	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return
	}
	if c.session == nil {
		sess, err := c.device.Open(c.position)
		if err != nil {
			h := c.handlers.OnError
			c.mu.Unlock()
			c.logger.Error().Err(err).Str("position", string(c.position)).Msg("failed to open capture session")
			if h != nil {
				h(err)
			}
			return
		}
		c.session = sess
	}
	c.startLocked()
	c.mu.Unlock()
	c.logger.Info().Str("position", string(c.position)).Msg("stream started")
}

// startLocked spawns the capture loop; c.mu must be held
func (c *Controller) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.streaming = true
	h := c.handlers
	sess := c.session
	c.wg.Add(1)
	go c.captureLoop(ctx, sess, h)
}

// stopLocked cancels the capture loop and waits for it; c.mu must be held
func (c *Controller) stopLocked() {
	if !c.streaming {
		return
	}
	c.cancel()
	c.wg.Wait()
	c.streaming = false
}

func (c *Controller) captureLoop(ctx context.Context, sess Session, h Handlers) {
	defer c.wg.Done()
	for {
		frame, err := sess.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error().Err(err).Msg("capture session failed")
			if h.OnError != nil {
				h.OnError(fmt.Errorf("%w: %v", ErrConfigurationFailed, err))
			}
			return
		}
		if c.filtering.Load() {
			frame.Depth = frame.Depth.Smoothed()
		}
		if h.OnFrame != nil {
			h.OnFrame(frame)
		}
	}
}

// CapturePhoto requests a single still capture. The result is delivered
// through OnPhoto, at most once per request; failures go to OnError.
func (c *Controller) CapturePhoto() {
	c.mu.Lock()
	sess := c.session
	h := c.handlers
	c.mu.Unlock()

	if sess == nil {
		c.logger.Warn().Msg("photo requested with no active session")
		if h.OnError != nil {
			h.OnError(fmt.Errorf("%w: no active capture session", ErrConfigurationFailed))
		}
		return
	}

	go func() {
		frame, err := sess.Still(context.Background())
		if err != nil {
			c.logger.Error().Err(err).Msg("still capture failed")
			if h.OnError != nil {
				h.OnError(fmt.Errorf("%w: %v", ErrConfigurationFailed, err))
			}
			return
		}
		if c.filtering.Load() {
			frame.Depth = frame.Depth.Smoothed()
		}
		c.logger.Debug().Uint64("seq", frame.Seq).Msg("photo captured")
		if h.OnPhoto != nil {
			h.OnPhoto(frame)
		}
	}()
}

// SwitchCamera toggles between the two physical camera positions. On
// ErrDeviceUnavailable or any other failure the current position and session
// are left unchanged. On success the new position is reported through
// OnPositionChanged and streaming resumes if it was active.
func (c *Controller) SwitchCamera() error {
	c.mu.Lock()
	target := c.position.Opposite()
	sess, err := c.device.Open(target)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("target", string(target)).Msg("camera switch rejected")
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrConfigurationFailed, err)
	}

	wasStreaming := c.streaming
	c.stopLocked()
	if c.session != nil {
		if cerr := c.session.Close(); cerr != nil {
			c.logger.Warn().Err(cerr).Msg("failed to close previous session")
		}
	}
	c.session = sess
	c.position = target
	if wasStreaming {
		c.startLocked()
	}
	h := c.handlers.OnPositionChanged
	c.mu.Unlock()

	c.logger.Info().Str("position", string(target)).Msg("camera switched")
	if h != nil {
		h(target)
	}
	return nil
}

// SetDepthFiltering toggles the depth smoothing filter. Takes effect on
// subsequently delivered frames only.
func (c *Controller) SetDepthFiltering(enabled bool) {
	c.filtering.Store(enabled)
	c.logger.Info().Bool("enabled", enabled).Msg("depth filtering toggled")
}

// DepthFiltering reports whether the smoothing filter is enabled
func (c *Controller) DepthFiltering() bool {
	return c.filtering.Load()
}

// Position returns the currently selected camera position
func (c *Controller) Position() models.CameraPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Close stops streaming and releases the session
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	if c.session != nil {
		err := c.session.Close()
		c.session = nil
		return err
	}
	return nil
}
