package config

import (
	"github.com/picdock/engine/internal/model"
)

// maskAffixes gives the visible (prefix, suffix) length kept when masking
// a credential string for logging, per field.
type maskAffixes struct {
	prefix int
	suffix int
}

var (
	cookieMask = maskAffixes{prefix: 4, suffix: 2}
	secretMask = maskAffixes{prefix: 3, suffix: 3}
	tokenMask  = maskAffixes{prefix: 4, suffix: 0}
)

// mask replaces the middle of s with asterisks, keeping a.prefix leading
// and a.suffix trailing characters. Strings too short to mask meaningfully
// are replaced outright.
func mask(s string, a maskAffixes) string {
	if s == "" {
		return s
	}

	keep := a.prefix + a.suffix
	if len(s) <= keep {
		return "******"
	}

	return s[:a.prefix] + "******" + s[len(s)-a.suffix:]
}

// Sanitize produces a shallow copy of cfg with every credential-bearing
// string replaced by a masked form. Used exclusively for logging — never
// for the persisted or in-memory config.
func Sanitize(cfg model.UserConfig) model.UserConfig {
	out := cfg
	out.Backends = make(map[model.BackendID]model.BackendConfig, len(cfg.Backends))

	for id, bc := range cfg.Backends {
		out.Backends[id] = sanitizeBackendConfig(bc)
	}

	return out
}

func sanitizeBackendConfig(bc model.BackendConfig) model.BackendConfig {
	out := bc

	if bc.Cookie != nil {
		c := *bc.Cookie
		c.Cookie = mask(c.Cookie, cookieMask)
		out.Cookie = &c
	}

	if bc.S3 != nil {
		s := *bc.S3
		s.AccessKey = mask(s.AccessKey, secretMask)
		s.SecretKey = mask(s.SecretKey, secretMask)
		out.S3 = &s
	}

	if bc.Token != nil {
		t := *bc.Token
		t.AuthToken = mask(t.AuthToken, tokenMask)
		out.Token = &t
	}

	if bc.Git != nil {
		g := *bc.Git
		g.Token = mask(g.Token, tokenMask)
		out.Git = &g
	}

	return out
}
