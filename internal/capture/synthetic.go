package capture

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"depthstream/pkg/models"
)

// SyntheticConfig configures the built-in synthetic depth camera
type SyntheticConfig struct {
	// ColorResolution is the YCbCr plane resolution; it doubles as the
	// intrinsics' reference resolution. Width and height must be even.
	ColorResolution models.Dimensions
	// DepthResolution is the depth map resolution, typically lower
	DepthResolution models.Dimensions
	// TargetFPS paces continuous frame delivery (0.1 - 60)
	TargetFPS float64
	// BackHasDepth / FrontHasDepth declare per-position depth capability
	BackHasDepth  bool
	FrontHasDepth bool
	// Clock drives frame pacing; tests inject a mock
	Clock clock.Clock
}

// SyntheticDevice generates a parametric scene (a slanted floor plane with a
// sphere in front of it) so the relay, recorder and exporter can run without
// camera hardware. The back position renders the room scene; the front
// position renders a close-range dome, standing in for a TrueDepth selfie.
type SyntheticDevice struct {
	cfg SyntheticConfig
}

// NewSyntheticDevice validates the config and returns a device
func NewSyntheticDevice(cfg SyntheticConfig) (*SyntheticDevice, error) {
	if cfg.ColorResolution.Width <= 0 || cfg.ColorResolution.Height <= 0 {
		return nil, fmt.Errorf("invalid color resolution %s", cfg.ColorResolution)
	}
	if cfg.ColorResolution.Width%2 != 0 || cfg.ColorResolution.Height%2 != 0 {
		return nil, fmt.Errorf("color resolution %s must be even for 4:2:0 chroma", cfg.ColorResolution)
	}
	if cfg.DepthResolution.Width <= 0 || cfg.DepthResolution.Height <= 0 {
		return nil, fmt.Errorf("invalid depth resolution %s", cfg.DepthResolution)
	}
	if cfg.TargetFPS < 0.1 || cfg.TargetFPS > 60 {
		return nil, fmt.Errorf("target FPS %.2f out of range [0.1, 60]", cfg.TargetFPS)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &SyntheticDevice{cfg: cfg}, nil
}

// Open implements Device
func (d *SyntheticDevice) Open(position models.CameraPosition) (Session, error) {
	switch position {
	case models.CameraPositionBack:
		if !d.cfg.BackHasDepth {
			return nil, ErrDeviceUnavailable
		}
	case models.CameraPositionFront:
		if !d.cfg.FrontHasDepth {
			return nil, ErrDeviceUnavailable
		}
	default:
		return nil, fmt.Errorf("%w: unknown camera position %q", ErrConfigurationFailed, position)
	}

	interval := time.Duration(float64(time.Second) / d.cfg.TargetFPS)
	return &syntheticSession{
		cfg:      d.cfg,
		position: position,
		interval: interval,
	}, nil
}

type syntheticSession struct {
	cfg      SyntheticConfig
	position models.CameraPosition
	interval time.Duration

	seq    atomic.Uint64
	ticker *clock.Ticker // lazily created on the first paced wait
	closed atomic.Bool
}

// Frame implements Session. The first frame is delivered immediately;
// subsequent frames wait out the pacing interval.
func (s *syntheticSession) Frame(ctx context.Context) (*models.CapturedFrame, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: session closed", ErrConfigurationFailed)
	}
	if s.ticker == nil {
		s.ticker = s.cfg.Clock.Ticker(s.interval)
	} else {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ticker.C:
		}
	}
	return s.generate(), nil
}

// Still implements Session
func (s *syntheticSession) Still(ctx context.Context) (*models.CapturedFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: session closed", ErrConfigurationFailed)
	}
	return s.generate(), nil
}

// Close implements Session
func (s *syntheticSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}

func (s *syntheticSession) generate() *models.CapturedFrame {
	seq := s.seq.Add(1)
	color := s.cfg.ColorResolution
	depthDims := s.cfg.DepthResolution

	depth := models.NewDepthMap(depthDims.Width, depthDims.Height)
	for y := 0; y < depthDims.Height; y++ {
		for x := 0; x < depthDims.Width; x++ {
			depth.Set(x, y, s.depthAt(x, y, depthDims, seq))
		}
	}

	luma := make([]byte, color.Width*color.Height)
	for y := 0; y < color.Height; y++ {
		for x := 0; x < color.Width; x++ {
			// diagonal gradient with a faint scene highlight
			v := 40 + (150*(x+y))/(color.Width+color.Height)
			luma[y*color.Width+x] = byte(v)
		}
	}
	chroma := make([]byte, (color.Width/2)*(color.Height/2)*2)
	for y := 0; y < color.Height/2; y++ {
		for x := 0; x < color.Width/2; x++ {
			i := (y*(color.Width/2) + x) * 2
			chroma[i] = byte(96 + (64*x)/(color.Width/2))    // Cb
			chroma[i+1] = byte(96 + (64*y)/(color.Height/2)) // Cr
		}
	}

	return &models.CapturedFrame{
		Seq:                 seq,
		Timestamp:           s.cfg.Clock.Now(),
		Depth:               depth,
		ColorLuma:           luma,
		ColorChroma:         chroma,
		ColorDimensions:     color,
		Intrinsics:          s.intrinsics(),
		ReferenceDimensions: color,
	}
}

// depthAt evaluates the scene's depth in meters at a depth-map pixel. The
// seq-driven ripple keeps consecutive frames distinguishable.
func (s *syntheticSession) depthAt(x, y int, dims models.Dimensions, seq uint64) float32 {
	u := float64(x) / float64(dims.Width-1)
	v := float64(y) / float64(dims.Height-1)

	if s.position == models.CameraPositionFront {
		// close-range dome centered in frame
		dx, dy := u-0.5, v-0.45
		r := math.Sqrt(dx*dx + dy*dy)
		if r < 0.35 {
			bulge := 0.12 * math.Cos(r/0.35*math.Pi/2)
			return float32(0.45 - bulge + 0.002*math.Sin(float64(seq)/8+u*10))
		}
		return float32(0.9 + 0.3*v)
	}

	// slanted floor receding from 1.5m to 4m
	d := 1.5 + 2.5*v
	// sphere of radius 0.4m centered 2.2m out
	dx, dy := u-0.5, v-0.5
	r := math.Sqrt(dx*dx + dy*dy)
	if r < 0.2 {
		d = 2.2 - 0.4*math.Cos(r/0.2*math.Pi/2)
	}
	d += 0.005 * math.Sin(float64(seq)/10+u*12)
	return float32(d)
}

func (s *syntheticSession) intrinsics() models.Intrinsics {
	w := float64(s.cfg.ColorResolution.Width)
	h := float64(s.cfg.ColorResolution.Height)
	// iPhone-like horizontal FOV of ~70 degrees
	fx := w / (2 * math.Tan(70.0/2*math.Pi/180))
	return models.Intrinsics{
		Fx:  fx,
		Fy:  fx,
		Ppx: w / 2,
		Ppy: h / 2,
	}
}
