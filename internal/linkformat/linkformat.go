// Package linkformat assembles the final user-visible URL for a successful
// upload, applying output-format proxy-prefix rules, per spec §4.6. GitHub
// CDN mirror-template substitution is not done here; it happens in
// internal/backend/gitcontent's PublicURL.
package linkformat

import (
	"fmt"
	"strings"

	"github.com/picdock/engine/internal/model"
)

// Resolve builds the final URL for result, given the backend's own
// canonical URL (already computed by IBackend.PublicURL) and the current
// UserConfig. Only weibo supports proxying; every other backend's canonical
// URL passes through unchanged.
func Resolve(backendID model.BackendID, canonicalURL string, cfg model.UserConfig) (string, error) {
	if backendID != model.BackendWeibo {
		return canonicalURL, nil
	}

	if cfg.OutputFormat != model.OutputProxied {
		return canonicalURL, nil
	}

	prefix, ok := SelectedPrefix(cfg.LinkPrefixConfig)
	if !ok {
		return canonicalURL, nil
	}

	return JoinPrefix(prefix, canonicalURL), nil
}

// SelectedPrefix returns the active proxy prefix, if link-prefix proxying is
// enabled and the selected index is in range.
func SelectedPrefix(cfg model.LinkPrefixConfig) (string, bool) {
	if !cfg.Enabled {
		return "", false
	}

	if cfg.SelectedIdx < 0 || cfg.SelectedIdx >= len(cfg.PrefixList) {
		return "", false
	}

	return cfg.PrefixList[cfg.SelectedIdx], true
}

// JoinPrefix prepends prefix to url, normalizing exactly one slash between
// them.
func JoinPrefix(prefix, url string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(url, "/")
}

// S3PublicURL builds "{public_domain}/{key}", the canonical form for every
// S3-family backend.
func S3PublicURL(publicDomain, key string) string {
	return strings.TrimSuffix(publicDomain, "/") + "/" + strings.TrimPrefix(key, "/")
}

// ErrInvalidCDNTemplate describes a GitHub CDN template missing one of the
// four required placeholders. No function in this package returns it;
// internal/backend/gitcontent checks templates with its own error.
var ErrInvalidCDNTemplate = fmt.Errorf("linkformat: cdn template missing a required placeholder")
