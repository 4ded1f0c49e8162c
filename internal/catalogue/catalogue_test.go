package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3EndpointFor_KnownProviders(t *testing.T) {
	for _, provider := range []string{"r2", "tencent", "aliyun", "qiniu", "upyun"} {
		ep, err := S3EndpointFor(provider)
		require.NoError(t, err, provider)
		assert.NotEmpty(t, ep.EndpointTemplate, provider)
		assert.Contains(t, []string{"path", "virtual"}, ep.Addressing, provider)
	}
}

func TestS3EndpointFor_UnknownProvider(t *testing.T) {
	_, err := S3EndpointFor("not-a-real-provider")
	require.Error(t, err)
}

func TestSocialUploadEndpoint_KnownBackends(t *testing.T) {
	for _, backend := range []string{"weibo", "nowcoder", "zhihu", "bilibili", "chaoxing", "nami", "qiyu"} {
		endpoint, err := SocialUploadEndpoint(backend)
		require.NoError(t, err, backend)
		assert.NotEmpty(t, endpoint, backend)
	}
}

func TestWeiboCDNTemplate(t *testing.T) {
	tmpl, err := WeiboCDNTemplate()
	require.NoError(t, err)
	assert.Contains(t, tmpl, "{pid}")
}

func TestGitHub(t *testing.T) {
	cat, err := GitHub()
	require.NoError(t, err)
	assert.NotEmpty(t, cat.ContentAPITemplate)
	assert.NotEmpty(t, cat.RawTemplate)
	assert.NotEmpty(t, cat.CDNTemplates)
}
