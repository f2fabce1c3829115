package store

import (
	"path/filepath"
	"testing"

	"bls-go/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{
			name:    "memory store",
			cfg:     config.StoreConfig{Type: "memory"},
			wantErr: false,
		},
		{
			name:    "filesystem store",
			cfg:     config.StoreConfig{Type: "filesystem", Root: filepath.Join(t.TempDir(), "library")},
			wantErr: false,
		},
		{
			name:    "filesystem store without root",
			cfg:     config.StoreConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name:    "unknown store type",
			cfg:     config.StoreConfig{Type: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoreFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got == nil {
				t.Error("NewStoreFromConfig() returned nil store")
			}
		})
	}
}
