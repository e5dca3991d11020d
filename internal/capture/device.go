package capture

import (
	"context"
	"errors"

	"depthstream/pkg/models"
)

// Sentinel errors for session (re)configuration failures
var (
	// ErrDeviceUnavailable means the requested camera position has no
	// depth-capable sensor on this hardware
	ErrDeviceUnavailable = errors.New("depth capture not supported on the selected camera")

	// ErrConfigurationFailed covers any other session configuration error
	ErrConfigurationFailed = errors.New("capture session configuration failed")
)

// Session is an open capture pipe for one camera position.
//
// Implementations must guarantee:
//   - Frame() blocks until the next paced frame or ctx is done
//   - Frames carry monotonically increasing sequence numbers
//   - Still() may be called concurrently with Frame()
//   - Close() is idempotent
type Session interface {
	// Frame produces the next continuous frame, paced at the session's
	// target rate. Returns ctx.Err() once the context is done.
	Frame(ctx context.Context) (*models.CapturedFrame, error)

	// Still produces a single full-quality photo frame.
	Still(ctx context.Context) (*models.CapturedFrame, error)

	// Close releases the session's resources.
	Close() error
}

// Device models the depth camera hardware: a set of physical camera
// positions, each of which may or may not support depth capture.
type Device interface {
	// Open configures a capture session for the given position. Returns
	// ErrDeviceUnavailable when the position has no depth capability.
	Open(position models.CameraPosition) (Session, error)
}
