package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"bls-go/internal/bls"
)

// Config represents the main configuration for bls.
type Config struct {
	DeviceID   string             `toml:"device_id"`
	BaseDir    string             `toml:"base_dir"`
	LogDir     string             `toml:"log_dir"`
	Store      StoreConfig        `toml:"store"`
	Remote     RemoteConfig       `toml:"remote"`
	Database   DatabaseConfig     `toml:"database"`
	Encryption EncryptionConfig   `toml:"encryption"`
	Sync       SyncConfig         `toml:"sync"`
	Reader     bls.ReaderDefaults `toml:"reader"`
}

// StoreConfig configures the local content store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "filesystem" or "memory"
	Root string `toml:"root,omitempty"`
}

// RemoteConfig configures the cloud side.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RemoteConfig struct {
	Type string `toml:"type"` // "api", "s3", "memory" or "none"

	// API-specific fields (only used when Type == "api")
	BaseURL   string `toml:"base_url,omitempty"`
	TokenPath string `toml:"token_path,omitempty"` // bearer token file, written by `bls login`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"` // custom endpoint for S3-compatible stores
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
	QuotaBytes  int64  `toml:"quota_bytes,omitempty"` // 0 means unlimited
}

// DatabaseConfig configures the local operation log.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig configures optional at-rest encryption of uploaded
// book files.
type EncryptionConfig struct {
	Type    string `toml:"type"` // "none" (default) or "age"
	KeyPath string `toml:"key_path,omitempty"`
}

// SyncConfig configures the sync scheduler.
type SyncConfig struct {
	DebounceSeconds int `toml:"debounce_seconds"`
}

// NewConfig creates a Config with the provided identity and sensible
// defaults rooted at baseDir.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "library"),
		},
		Remote: RemoteConfig{Type: "none"},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{Type: "none"},
		Sync:       SyncConfig{DebounceSeconds: 30},
		Reader:     bls.DefaultReaderDefaults(),
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
