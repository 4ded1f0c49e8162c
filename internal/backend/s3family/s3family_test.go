package s3family

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/model"
)

func TestProviderKey(t *testing.T) {
	assert.Equal(t, "r2", providerKey(model.BackendR2))
	assert.Equal(t, "tencent", providerKey(model.BackendTencent))
	assert.Equal(t, "", providerKey(model.BackendGithub))
}

func TestNew_PanicsOnNonS3Backend(t *testing.T) {
	assert.Panics(t, func() { New(model.BackendGithub) })
}

func TestValidate_RequiresAllFields(t *testing.T) {
	b := New(model.BackendR2)

	result := b.Validate(model.BackendConfig{})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "missing s3 credential")

	result = b.Validate(model.BackendConfig{S3: &model.S3Credential{AccessKey: "a"}})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "secret_key is required")
	assert.Contains(t, result.Errors, "bucket is required")
	assert.Contains(t, result.Errors, "region is required")
	assert.Contains(t, result.Errors, "public_domain is required")

	result = b.Validate(model.BackendConfig{S3: &model.S3Credential{
		AccessKey: "a", SecretKey: "s", Bucket: "b", Region: "r", PublicDomain: "https://cdn.example.com",
	}})
	assert.True(t, result.Valid)
}

func TestExpandTemplate(t *testing.T) {
	cred := &model.S3Credential{Bucket: "mybucket", Region: "us-east-1", AccessKey: "acct123"}

	got := expandTemplate("https://{bucket}.{region}.example.com/{account_id}", cred)
	assert.Equal(t, "https://mybucket.us-east-1.example.com/acct123", got)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "photo.png", objectKey("", "", "photo.png"))
	assert.Equal(t, "custom.png", objectKey("", "custom.png", "photo.png"))
	assert.Equal(t, "uploads/photo.png", objectKey("uploads/", "", "photo.png"))
	assert.Equal(t, "uploads/photo.png", objectKey("uploads", "", "/photo.png"))
}

func TestPublicURL(t *testing.T) {
	b := New(model.BackendR2)

	url, err := b.PublicURL(&model.UploadResult{FileKey: "uploads/photo.png"}, model.BackendConfig{
		S3: &model.S3Credential{PublicDomain: "https://cdn.example.com/"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/uploads/photo.png", url)

	_, err = b.PublicURL(&model.UploadResult{}, model.BackendConfig{})
	require.Error(t, err)
}
