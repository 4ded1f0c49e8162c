package model

// BackendConfig carries one backend's credentials and parameters. It is a
// Go-native tagged union: every field group is a pointer, exactly one
// (matching the owning BackendID) is expected to be non-nil. Enabled is
// shared by every variant.
//
// A struct-of-pointers is preferred here over an interface{} union because
// the config subsystem needs to marshal/unmarshal the whole thing to JSON
// and apply versioned migrations field-by-field (internal/config).
type BackendConfig struct {
	Enabled bool `json:"enabled"`

	Cookie *CookieCredential `json:"cookie,omitempty"`
	S3     *S3Credential     `json:"s3,omitempty"`
	Token  *TokenCredential  `json:"token,omitempty"`
	Git    *GitCredential    `json:"git,omitempty"`
}

// CookieCredential backs the cookie-authenticated multipart variant
// (weibo, nowcoder, zhihu, bilibili, chaoxing, nami).
type CookieCredential struct {
	Cookie string `json:"cookie"`
}

// S3Credential backs the S3-family variant (r2, tencent, aliyun, qiniu, upyun).
type S3Credential struct {
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Bucket       string `json:"bucket"`
	Region       string `json:"region"`
	PublicDomain string `json:"public_domain"`
	PathPrefix   string `json:"path_prefix,omitempty"`
}

// TokenCredential backs the token-acquired variant (qiyu, nami).
type TokenCredential struct {
	AuthToken string `json:"auth_token,omitempty"` // cached, short-lived
	ExpiresMs int64  `json:"expires_ms,omitempty"`
}

// GitCredential backs the Git content-API variant (github).
type GitCredential struct {
	Owner      string        `json:"owner"`
	Repo       string        `json:"repo"`
	Branch     string        `json:"branch"`
	Path       string        `json:"path"`
	Token      string        `json:"token"`
	CDNConfig  GitHubCDNConfig `json:"cdn_config"`
}

// GitHubCDNConfig rewrites a raw.githubusercontent URL onto a mirror
// template. Template must contain all four placeholders (see
// internal/backend/gitcontent).
type GitHubCDNConfig struct {
	Enabled  bool   `json:"enabled"`
	Template string `json:"template"`
}

// LinkPrefixConfig holds the proxy-template list used by the link-format
// layer when OutputFormat is "proxied".
type LinkPrefixConfig struct {
	Enabled      bool     `json:"enabled"`
	PrefixList   []string `json:"prefix_list"`
	SelectedIdx  int      `json:"selected_index"`
}

// UserConfig is the versioned aggregate persisted to config.dat (encrypted
// JSON, see internal/config). ConfigVersion drives forward-only migrations.
type UserConfig struct {
	ConfigVersion     uint32                      `json:"config_version"`
	EnabledBackends   []BackendID                 `json:"enabled_backends"`
	AvailableBackends []BackendID                 `json:"available_backends"`
	Backends          map[BackendID]BackendConfig `json:"backends"`
	OutputFormat      OutputFormat                `json:"output_format"`
	LinkPrefixConfig  LinkPrefixConfig            `json:"link_prefix_config"`
	AutoSyncInterval  int                         `json:"auto_sync_interval_s,omitempty"`
	AnalyticsEnabled  bool                        `json:"analytics_enabled"`
	Theme             string                      `json:"theme,omitempty"`
}
