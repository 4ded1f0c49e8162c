// Package catalogue holds the static, compiled-in backend endpoint and CDN
// template catalogue: S3-family endpoint templates per provider, social
// backend upload URLs, and GitHub raw/CDN templates. None of this is
// user-configurable — it ships with the binary and is decoded once, on
// first lookup, via BurntSushi/toml.
package catalogue

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed endpoints.toml
var endpointsTOML string

// S3Endpoint describes how to build a request URL for one S3-compatible
// provider.
type S3Endpoint struct {
	EndpointTemplate string `toml:"endpoint_template"`
	Addressing       string `toml:"addressing"` // "path" or "virtual"
}

// GitHubCatalogue holds the content-API and CDN templates for the GitHub backend.
type GitHubCatalogue struct {
	ContentAPITemplate string            `toml:"content_api_template"`
	RawTemplate        string            `toml:"raw_template"`
	CDNTemplates       map[string]string `toml:"cdn_templates"`
}

type document struct {
	S3     map[string]S3Endpoint      `toml:"s3"`
	Social map[string]socialEndpoint `toml:"social"`
	GitHub GitHubCatalogue           `toml:"github"`
}

type socialEndpoint struct {
	UploadEndpoint  string `toml:"upload_endpoint"`
	CDNURLTemplate  string `toml:"cdn_url_template"`
}

var (
	loadOnce sync.Once
	doc      document
	loadErr  error
)

func load() {
	loadOnce.Do(func() {
		_, loadErr = toml.Decode(endpointsTOML, &doc)
	})
}

// S3EndpointFor returns the endpoint template for an S3-compatible provider
// key ("r2", "tencent", "aliyun", "qiniu", "upyun").
func S3EndpointFor(provider string) (S3Endpoint, error) {
	load()
	if loadErr != nil {
		return S3Endpoint{}, fmt.Errorf("catalogue: decoding embedded catalogue: %w", loadErr)
	}

	ep, ok := doc.S3[provider]
	if !ok {
		return S3Endpoint{}, fmt.Errorf("catalogue: no s3 endpoint for provider %q", provider)
	}

	return ep, nil
}

// SocialUploadEndpoint returns the fixed upload URL for a cookie-authenticated backend.
func SocialUploadEndpoint(backend string) (string, error) {
	load()
	if loadErr != nil {
		return "", fmt.Errorf("catalogue: decoding embedded catalogue: %w", loadErr)
	}

	ep, ok := doc.Social[backend]
	if !ok {
		return "", fmt.Errorf("catalogue: no social endpoint for backend %q", backend)
	}

	return ep.UploadEndpoint, nil
}

// WeiboCDNTemplate returns weibo's image-id-to-URL template.
func WeiboCDNTemplate() (string, error) {
	load()
	if loadErr != nil {
		return "", fmt.Errorf("catalogue: decoding embedded catalogue: %w", loadErr)
	}

	return doc.Social["weibo"].CDNURLTemplate, nil
}

// GitHub returns the GitHub content-API and CDN template catalogue.
func GitHub() (GitHubCatalogue, error) {
	load()
	if loadErr != nil {
		return GitHubCatalogue{}, fmt.Errorf("catalogue: decoding embedded catalogue: %w", loadErr)
	}

	return doc.GitHub, nil
}
