package models

import "time"

// DownloadToken grants time-limited access to an exported model's files
type DownloadToken struct {
	Token     string    // The actual token string
	ExportID  string    // Export this token is valid for
	CreatedAt time.Time // When token was created
	ExpiresAt time.Time // When token expires
	ClientIP  string    // IP address that requested the token
}

// IsValid checks if the token is still valid
func (t *DownloadToken) IsValid() bool {
	return time.Now().Before(t.ExpiresAt)
}

// StatusResponse is the control API's view of the relay state
type StatusResponse struct {
	Mode                     string         `json:"mode"`
	DataAvailable            bool           `json:"dataAvailable"`
	IsRecording              bool           `json:"isRecording"`
	HasRecordedFrames        bool           `json:"hasRecordedFrames"`
	WaitingForCapture        bool           `json:"waitingForCapture"`
	ProcessingCapturedResult bool           `json:"processingCapturedResult"`
	CameraError              string         `json:"cameraError,omitempty"`
	CameraPosition           CameraPosition `json:"cameraPosition"`
	DepthFiltering           bool           `json:"depthFiltering"`
	RecordingID              string         `json:"recordingId,omitempty"`
	RecordedFrames           int            `json:"recordedFrames"`
	FramesApplied            uint64         `json:"framesApplied"`
	FramesDroppedReviewing   uint64         `json:"framesDroppedReviewing"`
	FramesDroppedQueue       uint64         `json:"framesDroppedQueue"`
	LatestFrame              *FrameInfo     `json:"latestFrame,omitempty"`
}

// FrameInfo summarizes the latest applied frame for the API
type FrameInfo struct {
	Seq                 uint64     `json:"seq"`
	Timestamp           string     `json:"timestamp"`
	DepthDimensions     Dimensions `json:"depthDimensions"`
	ColorDimensions     Dimensions `json:"colorDimensions"`
	ReferenceDimensions Dimensions `json:"referenceDimensions"`
	Intrinsics          Intrinsics `json:"intrinsics"`
}

// FilteringRequest toggles the depth smoothing filter
type FilteringRequest struct {
	Enabled bool `json:"enabled"`
}

// SwitchCameraResponse reports the outcome of a camera switch
type SwitchCameraResponse struct {
	CameraPosition CameraPosition `json:"cameraPosition"`
	CameraError    string         `json:"cameraError,omitempty"`
}

// RecordingResponse reports recording session state changes
type RecordingResponse struct {
	RecordingID       string `json:"recordingId,omitempty"`
	IsRecording       bool   `json:"isRecording"`
	RecordedFrames    int    `json:"recordedFrames"`
	HasRecordedFrames bool   `json:"hasRecordedFrames"`
}

// ExportInfo describes a finished mesh export
type ExportInfo struct {
	ExportID      string   `json:"exportId"`
	CreatedAt     string   `json:"createdAt"`
	FrameSeq      uint64   `json:"frameSeq"`
	Files         []string `json:"files"`
	Bytes         int64    `json:"bytes"`
	VertexCount   int      `json:"vertexCount"`
	TriangleCount int      `json:"triangleCount"`
}

// ExportResponse is returned when an export is created
type ExportResponse struct {
	Export    ExportInfo `json:"export"`
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expiresAt"`
	URLs      []string   `json:"urls"`
}

// ExportListResponse lists finished exports
type ExportListResponse struct {
	Exports []ExportInfo `json:"exports"`
	Total   int          `json:"total"`
}
