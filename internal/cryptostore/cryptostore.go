// Package cryptostore manages the at-rest encryption key used to protect
// config.dat and provides authenticated encrypt/decrypt helpers built on
// it. No ecosystem library in the reference corpus wraps an OS keychain
// (no 99designs/keyring or zalando/go-keyring dependency appears in any
// example's go.mod), so the key itself is persisted as a local file using
// the same atomic write-to-temp-then-rename discipline used elsewhere
// for its token file, and the encryption primitive is stdlib
// crypto/aes + crypto/cipher (AES-256-GCM) — no third-party package in
// the corpus offers authenticated symmetric encryption either.
package cryptostore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// FilePerms restricts the key file to owner-only read/write, matching the
// teacher's token file permissions.
const FilePerms = 0o600

// DirPerms is used when creating the containing directory.
const DirPerms = 0o700

// ErrKeyTooShort is returned when a loaded key file does not decode to
// KeySize bytes.
var ErrKeyTooShort = errors.New("cryptostore: stored key has wrong length")

// GetOrCreateKey loads the base64-encoded AES-256 key at path, generating
// and persisting a new random one if the file does not exist. This backs
// the get_or_create_secure_key command.
func GetOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return createKey(path)
	}

	if err != nil {
		return nil, fmt.Errorf("cryptostore: reading key file %s: %w", path, err)
	}

	key, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("cryptostore: decoding key file %s: %w", path, err)
	}

	if len(key) != KeySize {
		return nil, ErrKeyTooShort
	}

	return key, nil
}

func createKey(path string) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cryptostore: generating key: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(key)

	if err := atomicWrite(path, []byte(encoded)); err != nil {
		return nil, err
	}

	return key, nil
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename, matching the token store's atomic-save discipline.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("cryptostore: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".cryptokey-*.tmp")
	if err != nil {
		return fmt.Errorf("cryptostore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("cryptostore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cryptostore: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cryptostore: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cryptostore: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("cryptostore: renaming: %w", err)
	}

	success = true

	return nil
}

// Encrypt seals plaintext with AES-256-GCM under key, prepending a
// randomly generated nonce to the ciphertext.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptostore: building cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptostore: building gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptostore: generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt. Returns an error if the
// authentication tag does not verify — e.g. on a corrupted file or wrong key.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptostore: building cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptostore: building gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("cryptostore: ciphertext too short")
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptostore: decrypting: %w", err)
	}

	return plaintext, nil
}

// WriteFile encrypts data under key and atomically writes it to path.
func WriteFile(path string, key, data []byte) error {
	ciphertext, err := Encrypt(key, data)
	if err != nil {
		return err
	}

	return atomicWrite(path, ciphertext)
}

// ReadFile reads path and decrypts it under key. Returns fs.ErrNotExist
// (wrapped) if the file does not exist.
func ReadFile(path string, key []byte) ([]byte, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Decrypt(key, ciphertext)
}
