package history_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/history"
	"github.com/picdock/engine/internal/model"
)

func newTestStore(t *testing.T) *history.Store {
	t.Helper()

	s, err := history.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	return s
}

func sampleRecord(id string) model.HistoryRecord {
	return model.HistoryRecord{
		ID:             id,
		TimestampMs:    1700000000000,
		LocalFileName:  "cat.png",
		FilePath:       "/tmp/cat.png",
		PrimaryBackend: model.BackendR2,
		Results: []model.BackendAttempt{
			{BackendID: model.BackendR2, Status: model.AttemptSuccess, Result: &model.UploadResult{BackendID: model.BackendR2, FileKey: "cat.png", URL: "https://cdn.example/cat.png"}},
		},
		GeneratedLink: "https://cdn.example/cat.png",
	}
}

func TestInsertAndGetByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("rec-1")
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.GetByID(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, rec.LocalFileName, got.LocalFileName)
	assert.Equal(t, rec.PrimaryBackend, got.PrimaryBackend)
	assert.Len(t, got.Results, 1)
}

func TestGetByIDMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestInsertIsIdempotentOnID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("rec-1")
	require.NoError(t, s.Insert(ctx, rec))

	rec.LocalFileName = "dog.png"
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.GetByID(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "dog.png", got.LocalFileName)

	page, err := s.GetPage(ctx, 1, 10, "all")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestGetPagePaginatesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, ts := range []int64{100, 300, 200} {
		rec := sampleRecord(string(rune('a' + i)))
		rec.TimestampMs = ts
		require.NoError(t, s.Insert(ctx, rec))
	}

	page, err := s.GetPage(ctx, 1, 2, "all")
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Records, 2)
	assert.Equal(t, int64(300), page.Records[0].TimestampMs)
	assert.Equal(t, int64(200), page.Records[1].TimestampMs)
}

func TestSearchCaseInsensitiveSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("rec-1")
	rec.LocalFileName = "Vacation-PHOTO.png"
	require.NoError(t, s.Insert(ctx, rec))

	results, err := s.Search(ctx, "photo", "all", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-1", results[0].ID)
}

func TestUpdateBackendResultPatchesSingleEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("rec-1")
	rec.Results = append(rec.Results, model.BackendAttempt{BackendID: model.BackendWeibo, Status: model.AttemptFailed, Error: "timeout"})
	require.NoError(t, s.Insert(ctx, rec))

	err := s.UpdateBackendResult(ctx, "rec-1", model.BackendAttempt{
		BackendID: model.BackendWeibo, Status: model.AttemptSuccess,
		Result: &model.UploadResult{BackendID: model.BackendWeibo, FileKey: "pid123"},
	})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, got.Results, 2)

	for _, a := range got.Results {
		if a.BackendID == model.BackendWeibo {
			assert.Equal(t, model.AttemptSuccess, a.Status)
		}
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleRecord("rec-1")))
	require.NoError(t, s.Delete(ctx, "rec-1"))

	_, err := s.GetByID(ctx, "rec-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSubscribePublishesUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var events []history.Event
	s.Subscribe(func(e history.Event) { events = append(events, e) })

	require.NoError(t, s.Insert(ctx, sampleRecord("rec-1")))
	require.NoError(t, s.Delete(ctx, "rec-1"))

	require.Len(t, events, 2)
	assert.Equal(t, history.EventUpdated, events[0].Kind)
	assert.Equal(t, history.EventDeleted, events[1].Kind)
}
