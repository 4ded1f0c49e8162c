package model

// OverallStatus is the lifecycle state of a QueueItem as rendered by a
// session's UI layer.
type OverallStatus string

const (
	QueuePending   OverallStatus = "pending"
	QueueUploading OverallStatus = "uploading"
	QueueSuccess   OverallStatus = "success"
	QueueFailed    OverallStatus = "failed"
)

// BackendProgress is the per-backend slice of a QueueItem's live state,
// updated as progress events arrive on the bus keyed by upload_id.
type BackendProgress struct {
	StatusText string `json:"status_text"`
	Percent    int    `json:"percent"`
	Link       string `json:"link,omitempty"`
	Error      string `json:"error,omitempty"`
	IsRetrying bool   `json:"is_retrying"`
	StepIndex  *int   `json:"step_index,omitempty"`
	TotalSteps *int   `json:"total_steps,omitempty"`
}

// QueueItem is the in-memory, ephemeral (session-lifetime) representation
// of one file's dispatch, as rendered by a queue view. The engine core
// never persists this — only internal/history persists terminal results.
type QueueItem struct {
	ID              string                          `json:"id"`
	FilePath        string                          `json:"file_path"`
	FileName        string                          `json:"file_name"`
	EnabledBackends []BackendID                     `json:"enabled_backends"`
	PerBackend      map[BackendID]*BackendProgress  `json:"per_backend"`
	OverallStatus   OverallStatus                   `json:"overall_status"`
	PrimaryURL      string                          `json:"primary_url,omitempty"`
	ThumbURL        string                          `json:"thumb_url,omitempty"`
	RetryCount      int                             `json:"retry_count"`
	MaxRetries      int                             `json:"max_retries"`
	LastRetryMs     int64                           `json:"last_retry_ms,omitempty"`
}

// ProgressEvent is one observation on the progress bus (internal/progress),
// namespaced by UploadID so a session can route it back to the right
// QueueItem/backend pair via a reverse map.
type ProgressEvent struct {
	UploadID      string `json:"upload_id"`
	BackendID     BackendID
	ProgressBytes int64 `json:"progress_bytes"`
	TotalBytes    int64 `json:"total_bytes"`
}

// Fraction returns ProgressBytes/TotalBytes, clamped to [0,1]. Returns 0 if
// TotalBytes is unknown (<=0).
func (e ProgressEvent) Fraction() float64 {
	if e.TotalBytes <= 0 {
		return 0
	}

	f := float64(e.ProgressBytes) / float64(e.TotalBytes)
	if f > 1 {
		return 1
	}

	if f < 0 {
		return 0
	}

	return f
}
