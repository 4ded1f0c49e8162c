package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/config"
	"github.com/picdock/engine/internal/model"
)

func newStore(t *testing.T) *config.Store {
	t.Helper()

	dir := t.TempDir()
	s := config.Open(filepath.Join(dir, "config.dat"), filepath.Join(dir, "secure.key"), nil)
	t.Cleanup(s.Close)

	return s
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	s := newStore(t)

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.CurrentVersion, int(cfg.ConfigVersion))
	assert.Len(t, cfg.Backends, len(model.AllBackends))
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cfg := config.DefaultConfig()
	cfg.EnabledBackends = []model.BackendID{model.BackendR2}
	cfg.Backends[model.BackendR2] = model.BackendConfig{
		Enabled: true,
		S3:      &model.S3Credential{AccessKey: "ak", SecretKey: "sk", Bucket: "b", Region: "auto", PublicDomain: "https://cdn.example"},
	}

	require.NoError(t, s.Save(ctx, cfg))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.BackendID{model.BackendR2}, got.EnabledBackends)
	require.NotNil(t, got.Backends[model.BackendR2].S3)
	assert.Equal(t, "ak", got.Backends[model.BackendR2].S3.AccessKey)
}

func TestLoadCorruptFileBacksUpAndReturnsDefault(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.dat")
	keyPath := filepath.Join(dir, "secure.key")

	s := config.Open(configPath, keyPath, nil)
	defer s.Close()

	key, err := os.ReadFile(keyPath)
	assert.True(t, os.IsNotExist(err) || len(key) == 0)

	require.NoError(t, s.Save(ctx, config.DefaultConfig()))
	require.NoError(t, os.WriteFile(configPath, []byte("not encrypted bytes at all"), 0o600))

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.CurrentVersion, int(cfg.ConfigVersion))

	matches, err := filepath.Glob(configPath + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestMigrateV0Document(t *testing.T) {
	doc := map[string]any{
		"link_prefix": "https://proxy.example/",
	}

	migrated := config.Migrate(doc)

	assert.InDelta(t, float64(config.CurrentVersion), migrated["config_version"], 0)

	lpc, ok := migrated["link_prefix_config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, lpc["enabled"])

	backends, ok := migrated["backends"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, backends, len(model.AllBackends))
}

func TestIsValidUserConfigRejectsHistoryShapedDocument(t *testing.T) {
	doc := map[string]any{
		"id":              "rec-1",
		"results":         []any{},
		"primary_backend": "r2",
		"timestamp_ms":    float64(1700000000000),
	}

	assert.Error(t, config.IsValidUserConfig(doc))
}

func TestIsValidUserConfigRejectsNumericKeyArray(t *testing.T) {
	doc := map[string]any{
		"backends": map[string]any{
			"0": map[string]any{"enabled": true},
			"1": map[string]any{"enabled": false},
		},
	}

	assert.Error(t, config.IsValidUserConfig(doc))
}

func TestSanitizeMasksCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backends[model.BackendR2] = model.BackendConfig{
		Enabled: true,
		S3:      &model.S3Credential{AccessKey: "AKIAEXAMPLE", SecretKey: "supersecretvalue"},
	}

	sanitized := config.Sanitize(cfg)

	s3 := sanitized.Backends[model.BackendR2].S3
	require.NotNil(t, s3)
	assert.NotEqual(t, "AKIAEXAMPLE", s3.AccessKey)
	assert.Contains(t, s3.AccessKey, "******")
	assert.NotEqual(t, "supersecretvalue", s3.SecretKey)
}
