package store

import (
	"fmt"

	"bls-go/internal/bls"
	"bls-go/internal/config"
)

// NewStoreFromConfig creates a ContentStore based on the store config type.
func NewStoreFromConfig(cfg config.StoreConfig) (bls.ContentStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem store requires root to be set")
		}
		return NewFileSystemStore(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
