package sidecar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCookieJarReader_ReadsAndTrims(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weibo.com.cookies"), []byte("SUB=1; SUBP=2\n"), 0o600))

	jar := FileCookieJarReader{Dir: dir}
	assert.Equal(t, "SUB=1; SUBP=2", jar.CookiesForDomain("weibo.com"))
}

func TestFileCookieJarReader_MissingFileReturnsEmpty(t *testing.T) {
	jar := FileCookieJarReader{Dir: t.TempDir()}
	assert.Equal(t, "", jar.CookiesForDomain("zhihu.com"))
}
