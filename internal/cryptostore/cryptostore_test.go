package cryptostore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/cryptostore"
)

func TestGetOrCreateKeyPersistsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.b64")

	key1, err := cryptostore.GetOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, key1, cryptostore.KeySize)

	key2, err := cryptostore.GetOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestGetOrCreateKeyRejectsShortKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.b64")
	require.NoError(t, os.WriteFile(path, []byte("c2hvcnQ="), 0o600))

	_, err := cryptostore.GetOrCreateKey(path)
	assert.ErrorIs(t, err, cryptostore.ErrKeyTooShort)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, cryptostore.KeySize)

	ciphertext, err := cryptostore.Encrypt(key, []byte(`{"hello":"world"}`))
	require.NoError(t, err)

	plaintext, err := cryptostore.Decrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, `{"hello":"world"}`, string(plaintext))
}

func TestDecryptFailsOnWrongKey(t *testing.T) {
	key1 := make([]byte, cryptostore.KeySize)
	key2 := make([]byte, cryptostore.KeySize)
	key2[0] = 1

	ciphertext, err := cryptostore.Encrypt(key1, []byte("secret"))
	require.NoError(t, err)

	_, err = cryptostore.Decrypt(key2, ciphertext)
	assert.Error(t, err)
}

func TestWriteFileReadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.dat")
	key := make([]byte, cryptostore.KeySize)

	require.NoError(t, cryptostore.WriteFile(path, key, []byte(`{"config_version":3}`)))

	data, err := cryptostore.ReadFile(path, key)
	require.NoError(t, err)
	assert.Equal(t, `{"config_version":3}`, string(data))
}

func TestReadFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.dat")
	key := make([]byte, cryptostore.KeySize)

	_, err := cryptostore.ReadFile(path, key)
	assert.True(t, os.IsNotExist(err))
}
