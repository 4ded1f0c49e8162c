// Package progress implements the single owned channel per dispatch that
// carries (backend_id, Progress) pairs from backend runners to the caller.
// Per the spec's design notes (§9 "Progress multiplexing"), this replaces a
// string-keyed global event bus with a typed channel the native-side
// uploader writes directly into — there is no global bus.
package progress

import (
	"sync"

	"github.com/picdock/engine/internal/model"
)

// Sink is the callback a dispatcher hands to each backend's Upload call.
// Backends invoke it with a monotonically non-decreasing byte count; the
// Dispatcher tags it with the originating backend before forwarding.
type Sink func(progressBytes, totalBytes int64)

// Bus multiplexes progress events from N concurrent backend uploads for a
// single dispatch into one channel, filtering out-of-order events per
// backend (§5 ordering guarantee: progress events for a given upload_id are
// monotonic non-decreasing).
type Bus struct {
	events chan model.ProgressEvent

	mu      sync.Mutex
	highest map[model.BackendID]int64
}

// New creates a Bus with the given channel buffer size. A small buffer
// (e.g. 64) lets fast backends emit without blocking on a slow consumer.
func New(buffer int) *Bus {
	return &Bus{
		events:  make(chan model.ProgressEvent, buffer),
		highest: make(map[model.BackendID]int64),
	}
}

// Events returns the read side of the bus for the caller to range over.
func (b *Bus) Events() <-chan model.ProgressEvent {
	return b.events
}

// Close closes the event channel. Callers must not call Sink after Close.
func (b *Bus) Close() {
	close(b.events)
}

// SinkFor returns a Sink bound to backendID and uploadID. Out-of-order
// events (progressBytes less than the highest already seen for this
// backend) are silently dropped, matching the consumer-side drop rule in
// §5. Emission itself is non-blocking best-effort: a full channel drops the
// event rather than stalling the upload.
func (b *Bus) SinkFor(backendID model.BackendID, uploadID string) Sink {
	return func(progressBytes, totalBytes int64) {
		b.mu.Lock()
		if progressBytes < b.highest[backendID] {
			b.mu.Unlock()
			return
		}

		b.highest[backendID] = progressBytes
		b.mu.Unlock()

		evt := model.ProgressEvent{
			UploadID:      uploadID,
			BackendID:     backendID,
			ProgressBytes: progressBytes,
			TotalBytes:    totalBytes,
		}

		select {
		case b.events <- evt:
		default:
			// Consumer is behind; drop rather than block the upload goroutine.
		}
	}
}
