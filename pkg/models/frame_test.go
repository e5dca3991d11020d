package models

import (
	"math"
	"testing"
	"time"
)

func TestCameraPosition_Opposite(t *testing.T) {
	tests := []struct {
		pos  CameraPosition
		want CameraPosition
	}{
		{CameraPositionBack, CameraPositionFront},
		{CameraPositionFront, CameraPositionBack},
	}

	for _, tt := range tests {
		t.Run(string(tt.pos), func(t *testing.T) {
			if got := tt.pos.Opposite(); got != tt.want {
				t.Errorf("Opposite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntrinsics_Matrix(t *testing.T) {
	i := Intrinsics{Fx: 500, Fy: 510, Ppx: 320, Ppy: 240}
	m := i.Matrix()

	want := [3][3]float64{
		{500, 0, 320},
		{0, 510, 240},
		{0, 0, 1},
	}
	if m != want {
		t.Errorf("Matrix() = %v, want %v", m, want)
	}
}

func TestIntrinsics_ScaledTo(t *testing.T) {
	i := Intrinsics{Fx: 600, Fy: 600, Ppx: 320, Ppy: 240}
	ref := Dimensions{Width: 640, Height: 480}
	target := Dimensions{Width: 320, Height: 240}

	got := i.ScaledTo(ref, target)
	want := Intrinsics{Fx: 300, Fy: 300, Ppx: 160, Ppy: 120}
	if got != want {
		t.Errorf("ScaledTo() = %+v, want %+v", got, want)
	}

	// degenerate reference dimensions leave intrinsics unchanged
	if got := i.ScaledTo(Dimensions{}, target); got != i {
		t.Errorf("ScaledTo(zero ref) = %+v, want unchanged %+v", got, i)
	}
}

func TestIntrinsics_PixelToPoint(t *testing.T) {
	i := Intrinsics{Fx: 500, Fy: 500, Ppx: 320, Ppy: 240}

	// the principal point projects onto the optical axis
	x, y, z := i.PixelToPoint(320, 240, 2)
	if x != 0 || y != 0 || z != 2 {
		t.Errorf("PixelToPoint(principal point) = (%v, %v, %v), want (0, 0, 2)", x, y, z)
	}

	// one focal length to the right of center is one z-unit in x
	x, y, _ = i.PixelToPoint(820, 240, 2)
	if math.Abs(x-2) > 1e-9 || y != 0 {
		t.Errorf("PixelToPoint(820, 240, 2) = (%v, %v), want (2, 0)", x, y)
	}
}

func TestDepthMap_Smoothed(t *testing.T) {
	m := NewDepthMap(3, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			m.Set(x, y, 1)
		}
	}
	m.Set(0, 0, 10)

	sm := m.Smoothed()

	// center averages all nine samples
	want := float32(10+8) / 9
	if got := sm.At(1, 1); math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("Smoothed().At(1,1) = %v, want %v", got, want)
	}
	// original is untouched
	if m.At(1, 1) != 1 {
		t.Errorf("source map mutated: At(1,1) = %v", m.At(1, 1))
	}
}

func TestDepthMap_SmoothedSkipsInvalid(t *testing.T) {
	m := NewDepthMap(3, 1)
	m.Set(0, 0, 2)
	m.Set(1, 0, 0) // no reading
	m.Set(2, 0, 4)

	sm := m.Smoothed()

	if got := sm.At(1, 0); got != 0 {
		t.Errorf("invalid pixel should stay invalid, got %v", got)
	}
	// valid pixel averages only valid neighbors
	if got := sm.At(0, 0); got != 3 {
		t.Errorf("Smoothed().At(0,0) = %v, want 3", got)
	}
}

func TestCapturedFrame_Clone(t *testing.T) {
	depth := NewDepthMap(2, 2)
	depth.Set(0, 0, 1.5)

	f := &CapturedFrame{
		Seq:                 7,
		Timestamp:           time.Now(),
		Depth:               depth,
		ColorLuma:           []byte{1, 2, 3, 4},
		ColorChroma:         []byte{5, 6},
		ColorDimensions:     Dimensions{Width: 2, Height: 2},
		Intrinsics:          Intrinsics{Fx: 100, Fy: 100, Ppx: 1, Ppy: 1},
		ReferenceDimensions: Dimensions{Width: 2, Height: 2},
	}

	clone := f.Clone()
	if clone.Seq != f.Seq || clone.Intrinsics != f.Intrinsics {
		t.Fatalf("clone differs: %+v vs %+v", clone, f)
	}

	// mutating the original must not affect the clone
	f.Depth.Set(0, 0, 9)
	f.ColorLuma[0] = 0xFF
	f.ColorChroma[0] = 0xFF

	if clone.Depth.At(0, 0) != 1.5 {
		t.Errorf("clone depth mutated: %v", clone.Depth.At(0, 0))
	}
	if clone.ColorLuma[0] != 1 || clone.ColorChroma[0] != 5 {
		t.Errorf("clone color planes mutated: %v %v", clone.ColorLuma[0], clone.ColorChroma[0])
	}
}

func TestCapturedFrame_DepthIntrinsics(t *testing.T) {
	depth := NewDepthMap(160, 120)
	f := &CapturedFrame{
		Depth:               depth,
		Intrinsics:          Intrinsics{Fx: 600, Fy: 600, Ppx: 320, Ppy: 240},
		ReferenceDimensions: Dimensions{Width: 640, Height: 480},
	}

	got := f.DepthIntrinsics()
	want := Intrinsics{Fx: 150, Fy: 150, Ppx: 80, Ppy: 60}
	if got != want {
		t.Errorf("DepthIntrinsics() = %+v, want %+v", got, want)
	}
}
