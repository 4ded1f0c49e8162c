package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/model"
)

func TestResolveBackends_FlagOverride(t *testing.T) {
	cmd := newUploadCmd()
	require.NoError(t, cmd.Flags().Set("backends", "r2,weibo"))

	backends, err := resolveBackends(cmd, model.UserConfig{})
	require.NoError(t, err)
	assert.Equal(t, []model.BackendID{"r2", "weibo"}, backends)
}

func TestResolveBackends_FallsBackToConfig(t *testing.T) {
	cmd := newUploadCmd()

	cfg := model.UserConfig{EnabledBackends: []model.BackendID{model.BackendGithub}}

	backends, err := resolveBackends(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.EnabledBackends, backends)
}

func TestResolveBackends_NoneConfigured(t *testing.T) {
	cmd := newUploadCmd()

	_, err := resolveBackends(cmd, model.UserConfig{})
	require.Error(t, err)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678", shortID("1234567890"))
}
