package sidecar

import (
	"os"
	"path/filepath"
	"strings"
)

// FileCookieJarReader implements CookieJarReader by reading one flat file
// per domain out of a directory a browser-automation driver maintains. A
// real webview-embedding host would back CookieJarReader with its native
// cookie store directly; this implementation lets the watch loop run
// end-to-end without one, and is what the CLI's "sidecar watch-cookie"
// command uses.
type FileCookieJarReader struct {
	Dir string
}

// CookiesForDomain reads Dir/<domain>.cookies and returns its trimmed
// contents, or "" if the file doesn't exist yet (the driver hasn't written
// a snapshot, or the user hasn't logged in).
func (r FileCookieJarReader) CookiesForDomain(domain string) string {
	data, err := os.ReadFile(filepath.Join(r.Dir, domain+".cookies"))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
