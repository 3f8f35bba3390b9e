package acquire

// Stage names the pipeline stage that produced an image or gave up last.
type Stage string

const (
	StageDirectProbe   Stage = "direct_probe"
	StageSnapshotURI   Stage = "snapshot_uri"
	StageStreamCapture Stage = "stream_capture"
)

// Reason classifies a failed acquisition.
type Reason string

const (
	ReasonNoCredentials    Reason = "no_credentials"
	ReasonAuthRejected     Reason = "auth_rejected"
	ReasonNoValidImage     Reason = "no_valid_image"
	ReasonNoMediaProfile   Reason = "no_media_profile"
	ReasonNoStreamURI      Reason = "no_stream_uri"
	ReasonExtractionFailed Reason = "frame_extraction_failed"
	ReasonTransport        Reason = "transport_error"
)

// Result is the pipeline outcome. Either Image/Source are set (OK) or
// Reason is (failed); never both, and never a partial image.
type Result struct {
	OK     bool   `json:"ok"`
	Image  []byte `json:"-"`
	Source string `json:"source,omitempty"` // URL that yielded the image
	Path   string `json:"path,omitempty"`   // artifact on disk, when written
	Stage  Stage  `json:"stage,omitempty"`
	Reason Reason `json:"reason,omitempty"`
}

func success(stage Stage, source string, image []byte, path string) Result {
	return Result{OK: true, Stage: stage, Source: source, Image: image, Path: path}
}

func failure(stage Stage, reason Reason) Result {
	return Result{OK: false, Stage: stage, Reason: reason}
}
