package sidecar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/picdock/engine/internal/model"
)

// CookieJarRule describes how a backend's login webview is watched: the
// domain to restrict navigation to, the cookie fields that must all be
// present before the watcher reports success, and the per-backend polling
// cadence.
type CookieJarRule struct {
	LoginDomain     string
	RequiredFields  []string
	InitialDelay    time.Duration
	PollInterval    time.Duration
}

// cookieJarRules mirrors spec §4.4's per-backend required-field examples.
var cookieJarRules = map[model.BackendID]CookieJarRule{
	model.BackendWeibo:    {LoginDomain: "weibo.com", RequiredFields: []string{"SUB", "SUBP"}, InitialDelay: 500 * time.Millisecond, PollInterval: time.Second},
	model.BackendNowcoder: {LoginDomain: "nowcoder.com", RequiredFields: []string{"NOWCODERCLOUDID"}, InitialDelay: 500 * time.Millisecond, PollInterval: time.Second},
	model.BackendZhihu:    {LoginDomain: "zhihu.com", RequiredFields: []string{"z_c0"}, InitialDelay: 500 * time.Millisecond, PollInterval: time.Second},
	model.BackendBilibili: {LoginDomain: "bilibili.com", RequiredFields: []string{"SESSDATA", "bili_jct"}, InitialDelay: 500 * time.Millisecond, PollInterval: time.Second},
	model.BackendChaoxing: {LoginDomain: "chaoxing.com", RequiredFields: []string{"_d", "uf"}, InitialDelay: 500 * time.Millisecond, PollInterval: time.Second},
	model.BackendNami:     {LoginDomain: "nami.fun", RequiredFields: []string{"Auth-Token"}, InitialDelay: 500 * time.Millisecond, PollInterval: time.Second},
}

// RuleFor returns the cookie-jar watch rule for backend id, or false if id
// has none. Only weibo, nowcoder, zhihu, bilibili, chaoxing and nami have a
// rule; S3-family, GitHub, qiyu, jd, smms and imgur do not.
func RuleFor(id model.BackendID) (CookieJarRule, bool) {
	r, ok := cookieJarRules[id]
	return r, ok
}

// CookieJarReader is implemented by the host application's webview cookie
// store. internal/sidecar never embeds a real webview — it only watches
// whatever jar a caller hands it, so the watch loop is independently
// testable with a fake reader.
type CookieJarReader interface {
	// CookiesForDomain returns the current raw "k=v; k2=v2" cookie string
	// the jar holds for domain, or "" if none.
	CookiesForDomain(domain string) string
}

// WatchCookieJar polls jar for domain until every RequiredFields entry is
// present in the cookie string, then returns the full string. It honors
// ctx cancellation and the rule's InitialDelay/PollInterval cadence.
func WatchCookieJar(ctx context.Context, jar CookieJarReader, rule CookieJarRule) (string, error) {
	timer := time.NewTimer(rule.InitialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	ticker := time.NewTicker(rule.PollInterval)
	defer ticker.Stop()

	for {
		cookie := jar.CookiesForDomain(rule.LoginDomain)
		if hasAllFields(cookie, rule.RequiredFields) {
			return cookie, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("sidecar: cookie watch for %s: %w", rule.LoginDomain, ctx.Err())
		case <-ticker.C:
		}
	}
}

func hasAllFields(cookie string, fields []string) bool {
	if cookie == "" {
		return false
	}

	for _, f := range fields {
		if !strings.Contains(cookie, f+"=") {
			return false
		}
	}

	return true
}
