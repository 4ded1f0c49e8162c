package retry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/dispatcher"
	"github.com/picdock/engine/internal/history"
	"github.com/picdock/engine/internal/model"
	"github.com/picdock/engine/internal/retry"
)

type alwaysOnline struct{}

func (alwaysOnline) Check(context.Context) bool { return true }

type alwaysOffline struct{}

func (alwaysOffline) Check(context.Context) bool { return false }

type fakeBackend struct {
	id   model.BackendID
	fail bool
}

func (f *fakeBackend) ID() model.BackendID { return f.id }
func (f *fakeBackend) Validate(model.BackendConfig) backend.ValidationResult {
	return backend.ValidationResult{Valid: true}
}
func (f *fakeBackend) TestConnection(context.Context, model.BackendConfig) backend.ConnectionResult {
	return backend.ConnectionResult{OK: true}
}
func (f *fakeBackend) Upload(context.Context, model.BackendConfig, string, backend.UploadOptions, func(int64, int64)) (*model.UploadResult, error) {
	if f.fail {
		return nil, backend.NewProtocolError(f.id, "still broken")
	}

	return &model.UploadResult{BackendID: f.id, FileKey: "k", URL: "https://example.com/k"}, nil
}
func (f *fakeBackend) PublicURL(result *model.UploadResult, _ model.BackendConfig) (string, error) {
	return result.URL, nil
}

func setup(t *testing.T, b *fakeBackend) (*history.Store, *retry.Manager) {
	t.Helper()

	store, err := history.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := backend.NewRegistry()
	reg.Register(b.id, func() backend.IBackend { return b })

	mgr := retry.NewManager(store, dispatcher.New(reg), reg, alwaysOnline{}, 3)

	return store, mgr
}

func TestRetrySingleSuccessPatchesRecord(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{id: model.BackendR2}
	store, mgr := setup(t, b)

	rec := model.HistoryRecord{
		ID: "r1", PrimaryBackend: model.BackendR2,
		Results: []model.BackendAttempt{{BackendID: model.BackendR2, Status: model.AttemptFailed, Error: "old failure"}},
	}
	require.NoError(t, store.Insert(ctx, rec))

	cfg := model.UserConfig{Backends: map[model.BackendID]model.BackendConfig{model.BackendR2: {Enabled: true}}}

	err := mgr.RetrySingle(ctx, "r1", model.BackendR2, "f.png", cfg, nil)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSuccess, got.Results[0].Status)
}

func TestRetrySingleNetworkUnavailable(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{id: model.BackendR2}
	store, err := history.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := backend.NewRegistry()
	reg.Register(b.id, func() backend.IBackend { return b })
	mgr := retry.NewManager(store, dispatcher.New(reg), reg, alwaysOffline{}, 3)

	err = mgr.RetrySingle(ctx, "r1", model.BackendR2, "f.png", model.UserConfig{}, nil)
	assert.ErrorIs(t, err, retry.ErrNetworkUnavailable)
}

func TestRetryAllRejectsWhenBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{id: model.BackendR2}
	_, mgr := setup(t, b)

	cfg := model.UserConfig{Backends: map[model.BackendID]model.BackendConfig{model.BackendR2: {Enabled: true}}}

	_, err := mgr.RetryAll(ctx, "r1", 3, "f.png", []model.BackendID{model.BackendR2}, cfg, nil)
	assert.ErrorIs(t, err, retry.ErrRetryBudgetExhausted)
}
