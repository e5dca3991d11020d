// Package export turns recorded frame sequences into textured 3D model
// artifacts (OBJ mesh, MTL material, PNG texture) written through a storage
// backend.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"depthstream/internal/metrics"
	"depthstream/internal/storage"
	"depthstream/pkg/models"
)

// ErrNoFramesToExport means the recording buffer was empty; a local no-op
var ErrNoFramesToExport = errors.New("no recorded frames to export")

// Artifact filenames within an export directory
const (
	OBJFileName     = "model.obj"
	MTLFileName     = "model.mtl"
	TextureFileName = "texture.png"
)

// Record describes one finished export
type Record struct {
	ID            string
	CreatedAt     time.Time
	FrameSeq      uint64
	Files         []string
	Bytes         int64
	VertexCount   int
	TriangleCount int
}

// Info converts the record to its API representation
func (r *Record) Info() models.ExportInfo {
	return models.ExportInfo{
		ExportID:      r.ID,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		FrameSeq:      r.FrameSeq,
		Files:         r.Files,
		Bytes:         r.Bytes,
		VertexCount:   r.VertexCount,
		TriangleCount: r.TriangleCount,
	}
}

// Exporter builds meshes from recorded frames and writes their artifacts.
// It keeps an in-memory registry of finished exports for the control API.
type Exporter struct {
	storage storage.Storage
	metrics *metrics.Metrics
	logger  zerolog.Logger
	opts    MeshOptions

	mu      sync.RWMutex
	exports map[string]*Record
}

// New creates an exporter
func New(st storage.Storage, m *metrics.Metrics, opts MeshOptions, logger zerolog.Logger) *Exporter {
	return &Exporter{
		storage: st,
		metrics: m,
		logger:  logger.With().Str("component", "export").Logger(),
		opts:    opts.normalized(),
		exports: make(map[string]*Record),
	}
}

// Export meshes the designated frame of a recording (its last frame, the
// most settled view) and writes model.obj, model.mtl and texture.png under a
// fresh export ID. An empty buffer is a logged no-op returning
// ErrNoFramesToExport.
func (e *Exporter) Export(frames []*models.CapturedFrame) (*Record, error) {
	if len(frames) == 0 {
		e.logger.Warn().Msg("export requested with no recorded frames")
		return nil, ErrNoFramesToExport
	}

	started := time.Now()
	frame := frames[len(frames)-1]
	mesh := BuildMesh(frame, e.opts)
	if len(mesh.Triangles) == 0 {
		e.metrics.RecordExportFailure()
		return nil, fmt.Errorf("frame %d produced an empty mesh", frame.Seq)
	}

	id := uuid.NewString()
	rec := &Record{
		ID:            id,
		CreatedAt:     started,
		FrameSeq:      frame.Seq,
		Files:         []string{OBJFileName, MTLFileName, TextureFileName},
		VertexCount:   len(mesh.Vertices),
		TriangleCount: len(mesh.Triangles),
	}

	var obj, mtl, tex bytes.Buffer
	if err := WriteOBJ(&obj, mesh, MTLFileName); err != nil {
		e.metrics.RecordExportFailure()
		return nil, fmt.Errorf("failed to serialize mesh: %w", err)
	}
	if err := WriteMTL(&mtl, TextureFileName); err != nil {
		e.metrics.RecordExportFailure()
		return nil, fmt.Errorf("failed to serialize material: %w", err)
	}
	if err := WriteTexture(&tex, frame); err != nil {
		e.metrics.RecordExportFailure()
		return nil, fmt.Errorf("failed to encode texture: %w", err)
	}

	for name, data := range map[string][]byte{
		OBJFileName:     obj.Bytes(),
		MTLFileName:     mtl.Bytes(),
		TextureFileName: tex.Bytes(),
	} {
		if err := e.storage.Write(e.filePath(id, name), data); err != nil {
			e.metrics.RecordExportFailure()
			return nil, fmt.Errorf("failed to store %s: %w", name, err)
		}
		rec.Bytes += int64(len(data))
	}

	e.mu.Lock()
	e.exports[id] = rec
	e.mu.Unlock()

	elapsed := time.Since(started)
	e.metrics.RecordExport(elapsed.Seconds(), rec.Bytes, rec.TriangleCount)
	e.logger.Info().
		Str("export_id", id).
		Uint64("frame_seq", frame.Seq).
		Int("vertices", rec.VertexCount).
		Int("triangles", rec.TriangleCount).
		Int64("bytes", rec.Bytes).
		Dur("elapsed", elapsed).
		Msg("export written")
	return rec, nil
}

// Get returns a finished export by ID
func (e *Exporter) Get(id string) (*Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.exports[id]
	return rec, ok
}

// List returns all finished exports, newest first
func (e *Exporter) List() []*Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Record, 0, len(e.exports))
	for _, rec := range e.exports {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ReadFile reads one of an export's artifacts from storage
func (e *Exporter) ReadFile(id, name string) ([]byte, error) {
	rec, ok := e.Get(id)
	if !ok {
		return nil, fmt.Errorf("export %s not found", id)
	}
	valid := false
	for _, f := range rec.Files {
		if f == name {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("export %s has no file %s", id, name)
	}
	return e.storage.Read(e.filePath(id, name))
}

func (e *Exporter) filePath(id, name string) string {
	return fmt.Sprintf("%s/%s", id, name)
}
