package httpServer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"depthstream/internal/auth"
	"depthstream/internal/capture"
	"depthstream/internal/export"
	"depthstream/internal/metrics"
	"depthstream/internal/storage"
	"depthstream/internal/streammanager"
	"depthstream/pkg/models"
)

// scriptedController lets tests drive the manager without a capture device
type scriptedController struct {
	mu        sync.Mutex
	position  models.CameraPosition
	filtering bool
	switchErr error
}

func (c *scriptedController) StartStream()  {}
func (c *scriptedController) CapturePhoto() {}

func (c *scriptedController) SwitchCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.switchErr != nil {
		return c.switchErr
	}
	c.position = c.position.Opposite()
	return nil
}

func (c *scriptedController) SetDepthFiltering(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filtering = enabled
}

func (c *scriptedController) DepthFiltering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filtering
}

func (c *scriptedController) Position() models.CameraPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

type testEnv struct {
	server  *Server
	manager *streammanager.Manager
	ctrl    *scriptedController
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ctrl := &scriptedController{position: models.CameraPositionBack}
	manager := streammanager.New(ctrl, m, 16, zerolog.Nop())
	t.Cleanup(manager.Close)

	st, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	exporter := export.New(st, m, export.MeshOptions{PixelStride: 1, MaxDepthGap: 0.5}, zerolog.Nop())
	authManager := auth.New(time.Hour, 24*time.Hour)

	return &testEnv{
		server:  New(manager, authManager, exporter, m, registry),
		manager: manager,
		ctrl:    ctrl,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

// feedFrame injects a frame and waits for the apply goroutine to pick it up
func (e *testEnv) feedFrame(t *testing.T, seq uint64) {
	t.Helper()
	e.manager.OnContinuousFrame(exportableFrame(seq))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f := e.manager.Latest(); f != nil && f.Seq == seq {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("frame %d was not applied", seq)
}

// exportableFrame has enough depth and color data to mesh and texture
func exportableFrame(seq uint64) *models.CapturedFrame {
	depth := models.NewDepthMap(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			depth.Set(x, y, 2)
		}
	}
	return &models.CapturedFrame{
		Seq:                 seq,
		Timestamp:           time.Now(),
		Depth:               depth,
		ColorLuma:           make([]byte, 8*8),
		ColorChroma:         make([]byte, 4*4*2),
		ColorDimensions:     models.Dimensions{Width: 8, Height: 8},
		Intrinsics:          models.Intrinsics{Fx: 8, Fy: 8, Ppx: 4, Ppy: 4},
		ReferenceDimensions: models.Dimensions{Width: 8, Height: 8},
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/ping", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "pong") {
		t.Errorf("body = %s, want pong", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var st models.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if st.Mode != "streaming" {
		t.Errorf("mode = %q, want streaming", st.Mode)
	}
	if st.DataAvailable || st.LatestFrame != nil {
		t.Error("no data should be reported before the first frame")
	}

	env.feedFrame(t, 7)
	w = env.do(t, http.MethodGet, "/api/v1/status", "")
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if !st.DataAvailable || st.LatestFrame == nil || st.LatestFrame.Seq != 7 {
		t.Errorf("status after frame = %+v, want latest seq 7", st)
	}
}

func TestPhotoAndResume(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/photo", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("photo status = %d, want 202", w.Code)
	}
	if !env.manager.Status().WaitingForCapture {
		t.Error("waitingForCapture should be set after the photo request")
	}

	// the photo result arrives from the capture side
	env.manager.OnPhotoResult(exportableFrame(50))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && env.manager.Mode() != streammanager.ModeReviewing {
		time.Sleep(time.Millisecond)
	}
	if env.manager.Mode() != streammanager.ModeReviewing {
		t.Fatal("photo result did not flip to reviewing")
	}

	w = env.do(t, http.MethodPost, "/api/v1/stream/resume", "")
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d, want 200", w.Code)
	}
	if env.manager.Mode() != streammanager.ModeStreaming {
		t.Error("resume did not return to streaming")
	}
}

func TestFiltering(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/camera/filtering", `{"enabled":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !env.ctrl.DepthFiltering() {
		t.Error("filtering was not forwarded to the controller")
	}

	w = env.do(t, http.MethodPut, "/api/v1/camera/filtering", `{"enabled":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

func TestSwitchCamera(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/camera/switch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.SwitchCameraResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.CameraPosition != models.CameraPositionFront || resp.CameraError != "" {
		t.Errorf("response = %+v, want front with no error", resp)
	}

	env.ctrl.mu.Lock()
	env.ctrl.switchErr = capture.ErrDeviceUnavailable
	env.ctrl.mu.Unlock()

	w = env.do(t, http.MethodPost, "/api/v1/camera/switch", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.CameraError != streammanager.MsgDeviceUnavailable {
		t.Errorf("cameraError = %q, want the unavailable message", resp.CameraError)
	}
	if resp.CameraPosition != models.CameraPositionFront {
		t.Errorf("position = %v, should be unchanged on failure", resp.CameraPosition)
	}
}

func TestRecordingFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/recording/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", w.Code)
	}
	var start models.RecordingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &start); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if start.RecordingID == "" || !start.IsRecording {
		t.Errorf("start response = %+v", start)
	}

	env.feedFrame(t, 1)
	env.feedFrame(t, 2)

	w = env.do(t, http.MethodPost, "/api/v1/recording/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", w.Code)
	}
	var stop models.RecordingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stop); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if stop.IsRecording || stop.RecordedFrames != 2 || !stop.HasRecordedFrames {
		t.Errorf("stop response = %+v, want 2 frames", stop)
	}
}

func TestExportLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// no recording yet
	w := env.do(t, http.MethodPost, "/api/v1/exports", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("empty export status = %d, want 409", w.Code)
	}

	env.do(t, http.MethodPost, "/api/v1/recording/start", "")
	env.feedFrame(t, 1)
	env.do(t, http.MethodPost, "/api/v1/recording/stop", "")

	w = env.do(t, http.MethodPost, "/api/v1/exports", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("export status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var created models.ExportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.Token == "" || len(created.URLs) != 3 {
		t.Fatalf("export response = %+v, want a token and 3 URLs", created)
	}

	// listing and lookup
	w = env.do(t, http.MethodGet, "/api/v1/exports", "")
	var list models.ExportListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if list.Total != 1 {
		t.Errorf("list total = %d, want 1", list.Total)
	}

	w = env.do(t, http.MethodGet, "/api/v1/exports/"+created.Export.ExportID, "")
	if w.Code != http.StatusOK {
		t.Errorf("get export status = %d, want 200", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/exports/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown export status = %d, want 404", w.Code)
	}

	// downloads: token required and scoped to this export
	base := "/files/exports/" + created.Export.ExportID + "/" + export.OBJFileName
	w = env.do(t, http.MethodGet, base, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no-token download status = %d, want 401", w.Code)
	}
	w = env.do(t, http.MethodGet, base+"?token=bogus", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("bad-token download status = %d, want 403", w.Code)
	}

	w = env.do(t, http.MethodGet, base+"?token="+created.Token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "model/obj" {
		t.Errorf("Content-Type = %q, want model/obj", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "mtllib ") {
		t.Error("downloaded OBJ does not start with the material library line")
	}

	w = env.do(t, http.MethodGet, "/files/exports/"+created.Export.ExportID+"/other.bin?token="+created.Token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unlisted file download status = %d, want 404", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/ping", "")
	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "depthstream_http_requests_total") {
		t.Error("metrics output is missing the HTTP request counter")
	}
}
