package export

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"depthstream/pkg/models"
)

// MeshOptions controls depth-grid meshing
type MeshOptions struct {
	// PixelStride samples every Nth depth pixel (1 = full resolution)
	PixelStride int
	// MaxDepthGap rejects triangles spanning a depth discontinuity larger
	// than this many meters
	MaxDepthGap float32
}

// DefaultMeshOptions returns sane meshing defaults
func DefaultMeshOptions() MeshOptions {
	return MeshOptions{PixelStride: 2, MaxDepthGap: 0.1}
}

func (o MeshOptions) normalized() MeshOptions {
	if o.PixelStride < 1 {
		o.PixelStride = 1
	}
	if o.MaxDepthGap <= 0 {
		o.MaxDepthGap = 0.1
	}
	return o
}

// Mesh is a triangulated, UV-mapped surface in camera space
type Mesh struct {
	Vertices  []r3.Vector
	UVs       []r2.Point // one per vertex, indexed together
	Triangles [][3]int   // vertex indices, counter-clockwise
}

// BuildMesh triangulates a captured frame's depth grid. Each valid depth
// pixel becomes a vertex, back-projected through the intrinsics rescaled to
// the depth resolution; adjacent grid cells become two triangles unless the
// cell spans a depth discontinuity. UVs address the color image.
//
// Camera space is x right / y down / z forward; vertices are emitted in the
// y-up convention model viewers expect, so y and z are negated.
func BuildMesh(frame *models.CapturedFrame, opts MeshOptions) *Mesh {
	opts = opts.normalized()
	depth := frame.Depth
	w, h := depth.Width(), depth.Height()
	intr := frame.DepthIntrinsics()
	stride := opts.PixelStride

	// grid of sampled columns/rows
	cols := (w-1)/stride + 1
	rows := (h-1)/stride + 1

	mesh := &Mesh{}
	index := make([]int, cols*rows) // grid cell -> vertex index + 1, 0 = invalid

	for gy := 0; gy < rows; gy++ {
		for gx := 0; gx < cols; gx++ {
			x, y := gx*stride, gy*stride
			z := depth.At(x, y)
			if z <= 0 {
				continue
			}
			px, py, pz := intr.PixelToPoint(float64(x), float64(y), float64(z))
			mesh.Vertices = append(mesh.Vertices, r3.Vector{X: px, Y: -py, Z: -pz})
			mesh.UVs = append(mesh.UVs, r2.Point{
				X: float64(x) / float64(w-1),
				Y: 1 - float64(y)/float64(h-1),
			})
			index[gy*cols+gx] = len(mesh.Vertices)
		}
	}

	depthAt := func(gx, gy int) float32 {
		return depth.At(gx*stride, gy*stride)
	}

	for gy := 0; gy < rows-1; gy++ {
		for gx := 0; gx < cols-1; gx++ {
			a := index[gy*cols+gx]       // top-left
			b := index[gy*cols+gx+1]     // top-right
			c := index[(gy+1)*cols+gx]   // bottom-left
			d := index[(gy+1)*cols+gx+1] // bottom-right
			if a == 0 || b == 0 || c == 0 || d == 0 {
				continue
			}
			za, zb := depthAt(gx, gy), depthAt(gx+1, gy)
			zc, zd := depthAt(gx, gy+1), depthAt(gx+1, gy+1)
			if spread(za, zb, zc, zd) > opts.MaxDepthGap {
				continue
			}
			// counter-clockwise as seen from the camera after the y flip
			mesh.Triangles = append(mesh.Triangles,
				[3]int{a - 1, c - 1, b - 1},
				[3]int{b - 1, c - 1, d - 1},
			)
		}
	}

	return mesh
}

// spread returns the max pairwise difference of the four depths
func spread(vals ...float32) float32 {
	minV, maxV := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return maxV - minV
}
