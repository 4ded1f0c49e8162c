package dispatcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/dispatcher"
	"github.com/picdock/engine/internal/model"
)

type fakeBackend struct {
	id       model.BackendID
	fail     bool
	validErr bool
}

func (f *fakeBackend) ID() model.BackendID { return f.id }

func (f *fakeBackend) Validate(model.BackendConfig) backend.ValidationResult {
	return backend.ValidationResult{Valid: !f.validErr}
}

func (f *fakeBackend) TestConnection(context.Context, model.BackendConfig) backend.ConnectionResult {
	return backend.ConnectionResult{OK: true}
}

func (f *fakeBackend) Upload(
	_ context.Context, _ model.BackendConfig, _ string, _ backend.UploadOptions,
	onProgress func(int64, int64),
) (*model.UploadResult, error) {
	if onProgress != nil {
		onProgress(0, 100)
		onProgress(100, 100)
	}

	if f.fail {
		return nil, backend.NewProtocolError(f.id, "boom")
	}

	return &model.UploadResult{BackendID: f.id, FileKey: string(f.id) + "-key", URL: "https://example.com/" + string(f.id)}, nil
}

func (f *fakeBackend) PublicURL(result *model.UploadResult, _ model.BackendConfig) (string, error) {
	return result.URL, nil
}

func newRegistry(backends ...*fakeBackend) *backend.Registry {
	r := backend.NewRegistry()
	for _, b := range backends {
		b := b
		r.Register(b.id, func() backend.IBackend { return b })
	}

	return r
}

func cfgFor(ids ...model.BackendID) model.UserConfig {
	backends := make(map[model.BackendID]model.BackendConfig)
	for _, id := range ids {
		backends[id] = model.BackendConfig{Enabled: true}
	}

	return model.UserConfig{Backends: backends, OutputFormat: model.OutputDirect}
}

func TestDispatchNoEnabledBackend(t *testing.T) {
	d := dispatcher.New(backend.NewRegistry())

	_, err := d.Dispatch(context.Background(), "f.png", nil, model.UserConfig{}, nil)
	require.ErrorIs(t, err, dispatcher.ErrNoEnabledBackend)
}

func TestDispatchAllSucceed(t *testing.T) {
	ids := []model.BackendID{model.BackendR2, model.BackendWeibo, model.BackendTencent}
	backends := []*fakeBackend{{id: ids[0]}, {id: ids[1]}, {id: ids[2]}}
	d := dispatcher.New(newRegistry(backends...))

	result, err := d.Dispatch(context.Background(), "f.png", ids, cfgFor(ids...), nil)
	require.NoError(t, err)
	assert.Equal(t, model.BackendR2, result.PrimaryBackend)
	assert.Len(t, result.Results, 3)
	assert.False(t, result.IsPartialSuccess)
}

func TestDispatchTrimsToThree(t *testing.T) {
	ids := []model.BackendID{
		model.BackendR2, model.BackendWeibo, model.BackendTencent,
		model.BackendAliyun, model.BackendQiniu,
	}

	backends := make([]*fakeBackend, len(ids))
	for i, id := range ids {
		backends[i] = &fakeBackend{id: id}
	}

	d := dispatcher.New(newRegistry(backends...))

	result, err := d.Dispatch(context.Background(), "f.png", ids, cfgFor(ids...), nil)
	require.NoError(t, err)
	assert.Len(t, result.Results, 3)
	assert.Equal(t, model.BackendR2, result.PrimaryBackend)
}

func TestDispatchPartialSuccessElectsFirstSuccess(t *testing.T) {
	ids := []model.BackendID{model.BackendR2, model.BackendWeibo}
	backends := []*fakeBackend{{id: ids[0], fail: true}, {id: ids[1]}}
	d := dispatcher.New(newRegistry(backends...))

	result, err := d.Dispatch(context.Background(), "f.png", ids, cfgFor(ids...), nil)
	require.NoError(t, err)
	assert.Equal(t, model.BackendWeibo, result.PrimaryBackend)
	assert.True(t, result.IsPartialSuccess)
	assert.Len(t, result.PartialFailures, 1)
}

func TestDispatchAllFailReturnsAggregateError(t *testing.T) {
	ids := []model.BackendID{model.BackendR2, model.BackendWeibo}
	backends := []*fakeBackend{{id: ids[0], fail: true}, {id: ids[1], fail: true}}
	d := dispatcher.New(newRegistry(backends...))

	_, err := d.Dispatch(context.Background(), "f.png", ids, cfgFor(ids...), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(model.BackendR2))
	assert.Contains(t, err.Error(), string(model.BackendWeibo))
}

func TestDispatchNoConfiguredBackend(t *testing.T) {
	ids := []model.BackendID{model.BackendR2}
	backends := []*fakeBackend{{id: ids[0], validErr: true}}
	d := dispatcher.New(newRegistry(backends...))

	_, err := d.Dispatch(context.Background(), "f.png", ids, cfgFor(ids...), nil)
	require.ErrorIs(t, err, dispatcher.ErrNoConfiguredBackend)
}

func TestDispatchProgressTaggedByBackend(t *testing.T) {
	ids := []model.BackendID{model.BackendR2}
	backends := []*fakeBackend{{id: ids[0]}}
	d := dispatcher.New(newRegistry(backends...))

	var seen []model.BackendID

	_, err := d.Dispatch(context.Background(), "f.png", ids, cfgFor(ids...), func(id model.BackendID, _, _ int64) {
		seen = append(seen, id)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, seen)

	for _, id := range seen {
		assert.Equal(t, model.BackendR2, id)
	}
}
