package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"depthstream/pkg/models"
)

const materialName = "captured"

// WriteOBJ serializes the mesh as Wavefront OBJ text referencing the given
// material library
func WriteOBJ(w io.Writer, mesh *Mesh, mtlFile string) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "mtllib %s\n", mtlFile)
	fmt.Fprintf(&buf, "usemtl %s\n", materialName)

	for _, v := range mesh.Vertices {
		fmt.Fprintf(&buf, "v %.6f %.6f %.6f\n", v.X, v.Y, v.Z)
	}
	for _, uv := range mesh.UVs {
		fmt.Fprintf(&buf, "vt %.6f %.6f\n", uv.X, uv.Y)
	}
	// OBJ indices are 1-based; vertex and UV share an index
	for _, t := range mesh.Triangles {
		fmt.Fprintf(&buf, "f %d/%d %d/%d %d/%d\n",
			t[0]+1, t[0]+1, t[1]+1, t[1]+1, t[2]+1, t[2]+1)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteMTL serializes the material library referencing the texture image
func WriteMTL(w io.Writer, textureFile string) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "newmtl %s\n", materialName)
	buf.WriteString("Ka 1.000 1.000 1.000\n")
	buf.WriteString("Kd 1.000 1.000 1.000\n")
	buf.WriteString("Ks 0.000 0.000 0.000\n")
	buf.WriteString("d 1.0\n")
	buf.WriteString("illum 1\n")
	fmt.Fprintf(&buf, "map_Kd %s\n", textureFile)

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteTexture converts the frame's two-plane YCbCr color image to PNG. The
// interleaved half-resolution chroma plane is split into the separate Cb and
// Cr planes the image package expects.
func WriteTexture(w io.Writer, frame *models.CapturedFrame) error {
	dims := frame.ColorDimensions
	if dims.Width == 0 || dims.Height == 0 || len(frame.ColorLuma) < dims.Width*dims.Height {
		return fmt.Errorf("frame has no usable color planes")
	}

	img := image.NewYCbCr(image.Rect(0, 0, dims.Width, dims.Height), image.YCbCrSubsampleRatio420)
	copy(img.Y, frame.ColorLuma)

	cw, ch := dims.Width/2, dims.Height/2
	if len(frame.ColorChroma) < cw*ch*2 {
		return fmt.Errorf("chroma plane too short: have %d bytes, need %d", len(frame.ColorChroma), cw*ch*2)
	}
	for i := 0; i < cw*ch; i++ {
		img.Cb[i] = frame.ColorChroma[2*i]
		img.Cr[i] = frame.ColorChroma[2*i+1]
	}

	return png.Encode(w, img)
}
