package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/model"
)

func TestSinkFor_ForwardsMonotonicEvents(t *testing.T) {
	bus := New(8)
	sink := bus.SinkFor(model.BackendR2, "upload-1")

	sink(10, 100)
	sink(50, 100)
	sink(100, 100)

	bus.Close()

	var got []int64
	for evt := range bus.Events() {
		got = append(got, evt.ProgressBytes)
	}

	assert.Equal(t, []int64{10, 50, 100}, got)
}

func TestSinkFor_DropsOutOfOrderEvents(t *testing.T) {
	bus := New(8)
	sink := bus.SinkFor(model.BackendR2, "upload-1")

	sink(50, 100)
	sink(20, 100) // stale, dropped
	sink(80, 100)

	bus.Close()

	var got []int64
	for evt := range bus.Events() {
		got = append(got, evt.ProgressBytes)
	}

	assert.Equal(t, []int64{50, 80}, got)
}

func TestSinkFor_TracksPerBackendIndependently(t *testing.T) {
	bus := New(8)
	sinkA := bus.SinkFor(model.BackendR2, "upload-1")
	sinkB := bus.SinkFor(model.BackendWeibo, "upload-1")

	sinkA(90, 100)
	sinkB(5, 100)

	bus.Close()

	var backends []model.BackendID
	for evt := range bus.Events() {
		backends = append(backends, evt.BackendID)
	}

	require.Len(t, backends, 2)
	assert.Contains(t, backends, model.BackendR2)
	assert.Contains(t, backends, model.BackendWeibo)
}

func TestSinkFor_DropsOnFullChannelWithoutBlocking(t *testing.T) {
	bus := New(1)
	sink := bus.SinkFor(model.BackendR2, "upload-1")

	for i := int64(1); i <= 10; i++ {
		sink(i, 10)
	}

	bus.Close()

	count := 0
	for range bus.Events() {
		count++
	}

	assert.LessOrEqual(t, count, 2)
}
