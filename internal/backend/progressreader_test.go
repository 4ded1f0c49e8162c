package backend_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/backend"
)

func TestProgressReaderEmitsAtOpenAndCompletion(t *testing.T) {
	const total = 1024
	payload := bytes.Repeat([]byte{'x'}, total)

	var events []int64

	r := backend.NewProgressReader(bytes.NewReader(payload), total, func(progressBytes, totalBytes int64) {
		assert.EqualValues(t, total, totalBytes)
		events = append(events, progressBytes)
	})

	_, err := io.ReadAll(r)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.EqualValues(t, 0, events[0])
	assert.EqualValues(t, total, events[len(events)-1])
}

// TestProgressReaderCadenceUsesSmallerThreshold guards the §4.1 contract:
// emission at least every 256KB *or* every 10% of total, whichever is
// smaller — not whichever is larger. For a file well over 2.5MB, 10% of
// total exceeds 256KB, so the 256KB threshold must govern: a reader that
// instead picks the larger threshold would emit roughly once per megabyte
// on a 10MB file instead of four times as often.
func TestProgressReaderCadenceUsesSmallerThreshold(t *testing.T) {
	const total = 10 * 1024 * 1024 // 10MB: 10% (1MB) > 256KB, so 256KB must win.

	payload := bytes.Repeat([]byte{'y'}, total)

	var events []int64

	r := backend.NewProgressReader(bytes.NewReader(payload), total, func(progressBytes, totalBytes int64) {
		events = append(events, progressBytes)
	})

	buf := make([]byte, 256*1024)
	for {
		_, err := r.Read(buf)
		if err == io.EOF {
			break
		}

		require.NoError(t, err)
	}

	// With a 256KB read buffer and a 256KB cadence threshold, every read
	// should emit: at least total/256KB events, not total/1MB.
	minExpected := int64(total) / (256 * 1024)
	assert.GreaterOrEqual(t, int64(len(events)), minExpected)

	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i], events[i-1], "progress must be monotonic non-decreasing")
	}

	assert.EqualValues(t, total, events[len(events)-1])
}
