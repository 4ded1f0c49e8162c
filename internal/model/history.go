package model

import "time"

// UploadResult is the per-backend success shape returned by IBackend.Upload.
type UploadResult struct {
	BackendID BackendID      `json:"backend_id"`
	FileKey   string         `json:"file_key"` // backend-native id: S3 key, weibo pid, etc.
	URL       string         `json:"url"`
	SizeBytes int64          `json:"size_bytes"`
	Width     *int           `json:"width,omitempty"`
	Height    *int           `json:"height,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AttemptStatus is the terminal state of a single backend's upload attempt.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// BackendAttempt is one backend's outcome within a dispatch.
type BackendAttempt struct {
	BackendID BackendID     `json:"backend_id"`
	Status    AttemptStatus `json:"status"`
	Result    *UploadResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ImageMeta holds local-probe results (pkg/imagemeta) stored alongside a
// history record.
type ImageMeta struct {
	Width       *int     `json:"width,omitempty"`
	Height      *int     `json:"height,omitempty"`
	AspectRatio *float64 `json:"aspect_ratio,omitempty"`
	FileSize    *int64   `json:"file_size,omitempty"`
	Format      string   `json:"format,omitempty"`
}

// LinkCheckEntry is opaque metadata written by a validity checker the
// history store neither produces nor consumes beyond storing it (§4.5/§9).
type LinkCheckEntry struct {
	IsValid       bool   `json:"is_valid"`
	LastCheckMs   int64  `json:"last_check_ms"`
	StatusCode    *int   `json:"status_code,omitempty"`
	ErrorType     string `json:"error_type,omitempty"`
	ResponseTimeMs *int  `json:"response_time_ms,omitempty"`
}

// HistoryRecord is one durable row per file upload (internal/history).
type HistoryRecord struct {
	ID              string                          `json:"id"`
	TimestampMs     int64                           `json:"timestamp_ms"`
	LocalFileName   string                          `json:"local_file_name"`
	FilePath        string                          `json:"file_path,omitempty"`
	PrimaryBackend  BackendID                        `json:"primary_backend"`
	Results         []BackendAttempt                `json:"results"`
	GeneratedLink   string                           `json:"generated_link"`
	ImageMeta       ImageMeta                        `json:"image_meta"`
	LinkCheckStatus map[BackendID]LinkCheckEntry     `json:"link_check_status,omitempty"`
}

// Timestamp returns TimestampMs as a time.Time for display formatting.
func (r *HistoryRecord) Timestamp() time.Time {
	return time.UnixMilli(r.TimestampMs)
}

// SucceededBackends returns the IDs of every backend that succeeded.
func (r *HistoryRecord) SucceededBackends() []BackendID {
	var ids []BackendID

	for _, a := range r.Results {
		if a.Status == AttemptSuccess {
			ids = append(ids, a.BackendID)
		}
	}

	return ids
}
