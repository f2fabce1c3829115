package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - BLS_CONFIG_PATH: config file location (default: ~/.config/bls.toml)
//   - BLS_HOME: base directory for bls data (default: ~/.local/share/bls)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking BLS_CONFIG_PATH env var first,
// then falling back to the default ~/.config/bls.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("BLS_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "bls.toml"), nil
}

// getBaseDir returns the base directory for bls data, checking BLS_HOME env var first,
// then falling back to the XDG default ~/.local/share/bls.
func getBaseDir() (string, error) {
	if path := os.Getenv("BLS_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "bls"), nil
}
