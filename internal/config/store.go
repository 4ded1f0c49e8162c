// Package config implements loading, forward-only migration, encrypted
// persistence, validation, and log-safe sanitisation of the user-facing
// UserConfig document. Persistence follows the same tokenfile discipline
// (atomic temp-file-then-rename writes) layered over
// internal/cryptostore for the at-rest AES-256-GCM encryption, and all
// writes funnel through a single dedicated writer goroutine — the same
// shape internal/history uses to serialise history-store mutations — so
// concurrent Save calls can never interleave into a torn file.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/picdock/engine/internal/cryptostore"
	"github.com/picdock/engine/internal/model"
)

// Store owns config.dat and the secure key backing it, serialising every
// write through a sole writer goroutine.
type Store struct {
	configPath string
	keyPath    string
	logger     *slog.Logger

	writes   chan saveJob
	stopOnce chan struct{}
}

type saveJob struct {
	cfg  model.UserConfig
	done chan error
}

// Open builds a Store rooted at configPath/keyPath and starts its writer
// goroutine. It does not read the file — call Load for that.
func Open(configPath, keyPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		configPath: configPath,
		keyPath:    keyPath,
		logger:     logger,
		writes:     make(chan saveJob),
		stopOnce:   make(chan struct{}),
	}

	go s.runWriter()

	return s
}

// Close stops the writer goroutine. Any Save already in flight still
// completes.
func (s *Store) Close() {
	close(s.stopOnce)
}

// Load reads config.dat, decrypting it with the key at keyPath (creating
// the key on first run). A missing config file yields DefaultConfig. A
// file that fails to decrypt or fails to JSON-decode is backed up under a
// timestamped name and DefaultConfig is substituted.
func (s *Store) Load(ctx context.Context) (model.UserConfig, error) {
	key, err := cryptostore.GetOrCreateKey(s.keyPath)
	if err != nil {
		return model.UserConfig{}, fmt.Errorf("config: obtaining secure key: %w", err)
	}

	plaintext, err := cryptostore.ReadFile(s.configPath, key)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	if err != nil {
		s.logger.Warn("config: failed to decrypt config file, using defaults", "path", s.configPath, "error", err)

		if raw, readErr := os.ReadFile(s.configPath); readErr == nil {
			s.backupCorrupt(raw)
		} else {
			s.logger.Warn("config: failed to read corrupt config file for backup", "error", readErr)
		}

		return DefaultConfig(), nil
	}

	var doc map[string]any
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		s.backupCorrupt(plaintext)
		return DefaultConfig(), nil
	}

	if err := IsValidUserConfig(doc); err != nil {
		s.backupCorrupt(plaintext)
		return DefaultConfig(), nil
	}

	doc = Migrate(doc)

	migrated, err := json.Marshal(doc)
	if err != nil {
		return DefaultConfig(), nil
	}

	var cfg model.UserConfig
	if err := json.Unmarshal(migrated, &cfg); err != nil {
		s.backupCorrupt(plaintext)
		return DefaultConfig(), nil
	}

	return cfg, nil
}

// backupCorrupt copies raw bytes to a timestamped sibling of configPath so
// the original is preserved for forensics before DefaultConfig takes over.
func (s *Store) backupCorrupt(raw []byte) {
	backupPath := fmt.Sprintf("%s.corrupt-%d", s.configPath, time.Now().UnixNano())

	if err := os.WriteFile(backupPath, raw, 0o600); err != nil {
		s.logger.Warn("config: failed to back up corrupt config file", "error", err)
		return
	}

	s.logger.Warn("config: backed up corrupt config file", "path", backupPath)
}

// Save serialises cfg to JSON, encrypts it, and atomically writes it to
// config.dat via the sole writer goroutine.
func (s *Store) Save(ctx context.Context, cfg model.UserConfig) error {
	done := make(chan error, 1)

	select {
	case s.writes <- saveJob{cfg: cfg, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) runWriter() {
	for {
		select {
		case <-s.stopOnce:
			return
		case job := <-s.writes:
			job.done <- s.writeOnce(job.cfg)
		}
	}
}

func (s *Store) writeOnce(cfg model.UserConfig) error {
	key, err := cryptostore.GetOrCreateKey(s.keyPath)
	if err != nil {
		return fmt.Errorf("config: obtaining secure key: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.configPath), 0o700); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}

	if err := cryptostore.WriteFile(s.configPath, key, data); err != nil {
		return fmt.Errorf("config: writing: %w", err)
	}

	return nil
}
