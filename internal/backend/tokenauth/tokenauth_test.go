package tokenauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/model"
)

type fakeFetcher struct {
	calls     int
	token     string
	expiresMs int64
	err       error
}

func (f *fakeFetcher) FetchToken(_ context.Context, _ model.BackendID, _ model.BackendConfig) (string, int64, error) {
	f.calls++
	return f.token, f.expiresMs, f.err
}

func TestValidate(t *testing.T) {
	b := New(model.BackendQiyu, nil, &fakeFetcher{})

	assert.True(t, b.Validate(model.BackendConfig{}).Valid)
	assert.True(t, b.Validate(model.BackendConfig{Token: &model.TokenCredential{AuthToken: "tok", ExpiresMs: 1}}).Valid)
	assert.False(t, b.Validate(model.BackendConfig{Token: &model.TokenCredential{AuthToken: "", ExpiresMs: 1}}).Valid)
}

func TestTokenFor_UsesConfiguredUnexpiredToken(t *testing.T) {
	fetcher := &fakeFetcher{}
	b := New(model.BackendQiyu, nil, fetcher)

	future := time.Now().Add(time.Hour).UnixMilli()
	token, err := b.tokenFor(context.Background(), model.BackendConfig{
		Token: &model.TokenCredential{AuthToken: "cfg-token", ExpiresMs: future},
	})
	require.NoError(t, err)
	assert.Equal(t, "cfg-token", token)
	assert.Equal(t, 0, fetcher.calls)
}

func TestTokenFor_FetchesWhenNoneConfigured(t *testing.T) {
	fetcher := &fakeFetcher{token: "fresh-token", expiresMs: time.Now().Add(time.Hour).UnixMilli()}
	b := New(model.BackendQiyu, nil, fetcher)

	token, err := b.tokenFor(context.Background(), model.BackendConfig{})
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, fetcher.calls)
}

func TestTokenFor_CachesAcrossCalls(t *testing.T) {
	fetcher := &fakeFetcher{token: "fresh-token", expiresMs: time.Now().Add(time.Hour).UnixMilli()}
	b := New(model.BackendQiyu, nil, fetcher)

	_, err := b.tokenFor(context.Background(), model.BackendConfig{})
	require.NoError(t, err)

	token, err := b.tokenFor(context.Background(), model.BackendConfig{})
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, fetcher.calls)
}

func TestPublicURL(t *testing.T) {
	b := New(model.BackendQiyu, nil, &fakeFetcher{})

	url, err := b.PublicURL(&model.UploadResult{URL: "https://img.example.com/a.png"}, model.BackendConfig{})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/a.png", url)

	_, err = b.PublicURL(&model.UploadResult{}, model.BackendConfig{})
	require.Error(t, err)
}
