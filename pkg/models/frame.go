package models

import (
	"fmt"
	"time"
)

// CameraPosition identifies which physical camera a frame came from
type CameraPosition string

const (
	CameraPositionBack  CameraPosition = "back"
	CameraPositionFront CameraPosition = "front"
)

// Opposite returns the other camera position
func (p CameraPosition) Opposite() CameraPosition {
	if p == CameraPositionBack {
		return CameraPositionFront
	}
	return CameraPositionBack
}

// Dimensions holds a pixel width/height pair
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Intrinsics holds pinhole camera calibration parameters: focal lengths and
// principal point, in pixels of the reference resolution they were computed at
type Intrinsics struct {
	Fx  float64 `json:"fx"`
	Fy  float64 `json:"fy"`
	Ppx float64 `json:"ppx"`
	Ppy float64 `json:"ppy"`
}

// Matrix returns the 3x3 calibration matrix in row-major order
func (i Intrinsics) Matrix() [3][3]float64 {
	return [3][3]float64{
		{i.Fx, 0, i.Ppx},
		{0, i.Fy, i.Ppy},
		{0, 0, 1},
	}
}

// ScaledTo rescales the intrinsics from the reference resolution they were
// computed at to another resolution, e.g. the depth map's
func (i Intrinsics) ScaledTo(ref, target Dimensions) Intrinsics {
	if ref.Width == 0 || ref.Height == 0 {
		return i
	}
	sx := float64(target.Width) / float64(ref.Width)
	sy := float64(target.Height) / float64(ref.Height)
	return Intrinsics{
		Fx:  i.Fx * sx,
		Fy:  i.Fy * sy,
		Ppx: i.Ppx * sx,
		Ppy: i.Ppy * sy,
	}
}

// PixelToPoint back-projects the pixel (x, y) with depth z to a 3D point in
// camera space (x right, y down, z forward). Units follow z
func (i Intrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	px := (x - i.Ppx) / i.Fx * z
	py := (y - i.Ppy) / i.Fy * z
	return px, py, z
}

// DepthMap is a dense per-pixel distance buffer. Zero means no reading at
// that pixel. Values are meters, stored row-major
type DepthMap struct {
	width  int
	height int
	data   []float32
}

// NewDepthMap allocates a zeroed depth map
func NewDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
}

func (m *DepthMap) Width() int  { return m.width }
func (m *DepthMap) Height() int { return m.height }

// At returns the depth at (x, y)
func (m *DepthMap) At(x, y int) float32 {
	return m.data[y*m.width+x]
}

// Set writes the depth at (x, y)
func (m *DepthMap) Set(x, y int, v float32) {
	m.data[y*m.width+x] = v
}

// Clone returns a deep copy
func (m *DepthMap) Clone() *DepthMap {
	out := NewDepthMap(m.width, m.height)
	copy(out.data, m.data)
	return out
}

// Smoothed returns a copy with a 3x3 box filter applied over valid samples.
// Pixels with no reading stay invalid; invalid neighbors are skipped
func (m *DepthMap) Smoothed() *DepthMap {
	out := NewDepthMap(m.width, m.height)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.At(x, y) == 0 {
				continue
			}
			var sum float32
			var n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= m.width || ny >= m.height {
						continue
					}
					if v := m.At(nx, ny); v > 0 {
						sum += v
						n++
					}
				}
			}
			out.Set(x, y, sum/float32(n))
		}
	}
	return out
}

// CapturedFrame is one synchronized sample from the depth camera: a depth
// map, the two-plane YCbCr color image, and the calibration the sample was
// captured under. All fields originate from the same capture instant and
// must not be mixed with fields of other frames.
//
// Color is 4:2:0 bi-planar: ColorLuma holds one Y byte per pixel of
// ColorDimensions, ColorChroma holds interleaved Cb/Cr pairs at half
// resolution in both axes.
type CapturedFrame struct {
	Seq       uint64    // Monotonic sequence number assigned by the producer
	Timestamp time.Time // Capture instant

	Depth *DepthMap

	ColorLuma       []byte
	ColorChroma     []byte
	ColorDimensions Dimensions

	Intrinsics Intrinsics
	// ReferenceDimensions is the resolution the intrinsics were computed
	// against; depth and color planes may differ from it
	ReferenceDimensions Dimensions
}

// Clone creates a deep copy of the frame. Use this when the producer may
// reuse the underlying buffers after delivery.
func (f *CapturedFrame) Clone() *CapturedFrame {
	out := *f
	if f.Depth != nil {
		out.Depth = f.Depth.Clone()
	}
	if f.ColorLuma != nil {
		out.ColorLuma = make([]byte, len(f.ColorLuma))
		copy(out.ColorLuma, f.ColorLuma)
	}
	if f.ColorChroma != nil {
		out.ColorChroma = make([]byte, len(f.ColorChroma))
		copy(out.ColorChroma, f.ColorChroma)
	}
	return &out
}

// DepthDimensions returns the depth map's resolution
func (f *CapturedFrame) DepthDimensions() Dimensions {
	if f.Depth == nil {
		return Dimensions{}
	}
	return Dimensions{Width: f.Depth.Width(), Height: f.Depth.Height()}
}

// DepthIntrinsics returns the intrinsics rescaled from the reference
// resolution to the depth map's resolution
func (f *CapturedFrame) DepthIntrinsics() Intrinsics {
	return f.Intrinsics.ScaledTo(f.ReferenceDimensions, f.DepthDimensions())
}
