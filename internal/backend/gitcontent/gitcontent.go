// Package gitcontent implements the Git content-API IBackend variant
// (github): PUT to repos/{owner}/{repo}/contents/{path} with a
// base64-encoded payload, optionally rewriting the resulting raw URL onto a
// CDN mirror template (spec §4.1/§4.6).
package gitcontent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/catalogue"
	"github.com/picdock/engine/internal/model"
)

// Backend implements backend.IBackend for github.
type Backend struct {
	id     model.BackendID
	client *backend.HTTPClient
}

// New constructs a gitcontent Backend.
func New(httpClient *http.Client) *Backend {
	return &Backend{id: model.BackendGithub, client: backend.NewHTTPClient(model.BackendGithub, httpClient, nil)}
}

func (b *Backend) ID() model.BackendID { return b.id }

// Validate requires owner, repo, branch and token (path may be empty); if a CDN config is
// present and enabled, its template must contain all four placeholders.
func (b *Backend) Validate(config model.BackendConfig) backend.ValidationResult {
	if config.Git == nil {
		return backend.ValidationResult{Valid: false, Errors: []string{"missing git credential"}}
	}

	var errs []string

	if config.Git.Owner == "" {
		errs = append(errs, "owner is required")
	}

	if config.Git.Repo == "" {
		errs = append(errs, "repo is required")
	}

	if config.Git.Branch == "" {
		errs = append(errs, "branch is required")
	}

	if config.Git.Token == "" {
		errs = append(errs, "token is required")
	}

	if config.Git.CDNConfig.Enabled {
		if err := validateCDNTemplate(config.Git.CDNConfig.Template); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return backend.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// cdnPlaceholders are the four substitution tokens every CDN template must
// carry, per spec §4.6.
var cdnPlaceholders = []string{"{owner}", "{repo}", "{branch}", "{path}"}

func validateCDNTemplate(tmpl string) error {
	for _, ph := range cdnPlaceholders {
		if !strings.Contains(tmpl, ph) {
			return fmt.Errorf("cdn template missing placeholder %s", ph)
		}
	}

	return nil
}

// TestConnection performs a GET on the repo's contents root as a cheap probe.
func (b *Backend) TestConnection(ctx context.Context, config model.BackendConfig) backend.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()

	cat, err := catalogue.GitHub()
	if err != nil {
		return backend.ConnectionResult{OK: false, Error: err.Error()}
	}

	url := expand(cat.ContentAPITemplate, config.Git, "")

	resp, err := b.client.Do(ctx, "test-connection", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Authorization", "token "+config.Git.Token)
		req.Header.Set("Accept", "application/vnd.github+json")

		return req, nil
	})

	latency := time.Since(start)

	if err != nil {
		return backend.ConnectionResult{OK: false, LatencyMS: latency.Milliseconds(), Error: err.Error()}
	}

	defer resp.Body.Close()

	return backend.ConnectionResult{OK: true, LatencyMS: latency.Milliseconds()}
}

type putContentRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
}

type putContentResponse struct {
	Content struct {
		Path        string `json:"path"`
		DownloadURL string `json:"download_url"`
	} `json:"content"`
}

// Upload reads the whole file (GitHub's content API requires a single
// base64 body, not a stream), PUTs it, and returns the raw download URL.
func (b *Backend) Upload(
	ctx context.Context, config model.BackendConfig, filePath string, opts backend.UploadOptions,
	onProgress func(progressBytes, totalBytes int64),
) (*model.UploadResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindFileSystem, Op: "read", Path: filePath, Cause: err}
	}

	total := int64(len(data))
	if onProgress != nil {
		onProgress(0, total)
	}

	destPath := opts.DestinationHint
	if destPath == "" {
		destPath = path.Join(config.Git.Path, path.Base(filePath))
	}

	cat, err := catalogue.GitHub()
	if err != nil {
		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	url := expand(cat.ContentAPITemplate, config.Git, destPath)

	body, err := json.Marshal(putContentRequest{
		Message: fmt.Sprintf("upload %s", path.Base(filePath)),
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  config.Git.Branch,
	})
	if err != nil {
		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	resp, err := b.client.Do(ctx, "upload", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(string(body)))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Authorization", "token "+config.Git.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")

		return req, nil
	})
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	var parsed putContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, backend.NewProtocolError(b.id, "unparseable response: "+err.Error())
	}

	if onProgress != nil {
		onProgress(total, total)
	}

	return &model.UploadResult{
		BackendID: b.id,
		FileKey:   parsed.Content.Path,
		URL:       parsed.Content.DownloadURL,
		SizeBytes: total,
	}, nil
}

func expand(tmpl string, cred *model.GitCredential, filePath string) string {
	r := strings.NewReplacer(
		"{owner}", cred.Owner,
		"{repo}", cred.Repo,
		"{branch}", cred.Branch,
		"{path}", filePath,
	)

	return r.Replace(tmpl)
}

// PublicURL returns the raw download URL, substituting a CDN mirror
// template when github.cdn_config.enabled.
func (b *Backend) PublicURL(result *model.UploadResult, config model.BackendConfig) (string, error) {
	if config.Git == nil {
		return "", fmt.Errorf("gitcontent: missing git credential")
	}

	if !config.Git.CDNConfig.Enabled {
		return result.URL, nil
	}

	if err := validateCDNTemplate(config.Git.CDNConfig.Template); err != nil {
		return "", err
	}

	return BuildCDNURL(config.Git, config.Git.CDNConfig.Template, result.FileKey), nil
}

// BuildCDNURL substitutes owner/repo/branch/path into template. Exported so
// tests can exercise the round-trip law in spec §8
// ("public_url(parse_github_raw(build_cdn_url(parts, template))) = parts").
func BuildCDNURL(cred *model.GitCredential, template, filePath string) string {
	return expand(template, cred, filePath)
}

// ParseGitHubRaw extracts {owner, repo, branch, path} from a raw.githubusercontent.com URL.
func ParseGitHubRaw(rawURL string) (owner, repo, branch, filePath string, ok bool) {
	const prefix = "https://raw.githubusercontent.com/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", "", "", "", false
	}

	parts := strings.SplitN(strings.TrimPrefix(rawURL, prefix), "/", 4)
	if len(parts) != 4 {
		return "", "", "", "", false
	}

	return parts[0], parts[1], parts[2], parts[3], true
}
