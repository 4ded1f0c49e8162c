package gitcontent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/model"
)

func TestValidate(t *testing.T) {
	b := New(nil)

	result := b.Validate(model.BackendConfig{})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "missing git credential")

	result = b.Validate(model.BackendConfig{Git: &model.GitCredential{}})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "owner is required")
	assert.Contains(t, result.Errors, "repo is required")
	assert.Contains(t, result.Errors, "branch is required")
	assert.Contains(t, result.Errors, "token is required")

	result = b.Validate(model.BackendConfig{Git: &model.GitCredential{
		Owner: "o", Repo: "r", Branch: "main", Token: "tok",
	}})
	assert.True(t, result.Valid)
}

func TestValidate_RejectsIncompleteCDNTemplate(t *testing.T) {
	b := New(nil)

	result := b.Validate(model.BackendConfig{Git: &model.GitCredential{
		Owner: "o", Repo: "r", Branch: "main", Token: "tok",
		CDNConfig: model.GitHubCDNConfig{Enabled: true, Template: "https://cdn.jsdelivr.net/gh/{owner}/{repo}@{branch}"},
	}})
	assert.False(t, result.Valid)
}

func TestExpandAndBuildCDNURL(t *testing.T) {
	cred := &model.GitCredential{Owner: "acme", Repo: "images", Branch: "main"}

	url := BuildCDNURL(cred, "https://cdn.jsdelivr.net/gh/{owner}/{repo}@{branch}/{path}", "uploads/a.png")
	assert.Equal(t, "https://cdn.jsdelivr.net/gh/acme/images@main/uploads/a.png", url)
}

func TestParseGitHubRaw(t *testing.T) {
	owner, repo, branch, path, ok := ParseGitHubRaw("https://raw.githubusercontent.com/acme/images/main/uploads/a.png")
	require.True(t, ok)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "images", repo)
	assert.Equal(t, "main", branch)
	assert.Equal(t, "uploads/a.png", path)

	_, _, _, _, ok = ParseGitHubRaw("https://example.com/not-github")
	assert.False(t, ok)
}

func TestParseGitHubRaw_RoundTripsWithBuildCDNURL(t *testing.T) {
	cred := &model.GitCredential{Owner: "acme", Repo: "images", Branch: "main"}
	tmpl := "https://raw.githubusercontent.com/{owner}/{repo}/{branch}/{path}"

	raw := BuildCDNURL(cred, tmpl, "uploads/a.png")

	owner, repo, branch, path, ok := ParseGitHubRaw(raw)
	require.True(t, ok)
	assert.Equal(t, cred.Owner, owner)
	assert.Equal(t, cred.Repo, repo)
	assert.Equal(t, cred.Branch, branch)
	assert.Equal(t, "uploads/a.png", path)
}

func TestPublicURL_NoCDNReturnsResultURL(t *testing.T) {
	b := New(nil)

	url, err := b.PublicURL(&model.UploadResult{URL: "https://raw.githubusercontent.com/acme/images/main/a.png"}, model.BackendConfig{
		Git: &model.GitCredential{},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://raw.githubusercontent.com/acme/images/main/a.png", url)
}

func TestPublicURL_CDNRewritesURL(t *testing.T) {
	b := New(nil)

	cfg := model.BackendConfig{Git: &model.GitCredential{
		Owner: "acme", Repo: "images", Branch: "main",
		CDNConfig: model.GitHubCDNConfig{Enabled: true, Template: "https://cdn.jsdelivr.net/gh/{owner}/{repo}@{branch}/{path}"},
	}}

	url, err := b.PublicURL(&model.UploadResult{FileKey: "uploads/a.png"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.jsdelivr.net/gh/acme/images@main/uploads/a.png", url)
}
