package database

import (
	"fmt"
	"path/filepath"

	"bls-go/internal/bls"
	"bls-go/internal/config"
	"bls-go/internal/model"
)

// NewLogFromConfig creates an OperationLog based on the database config type.
func NewLogFromConfig(cfg config.DatabaseConfig, deviceID string) (bls.OperationLog, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteLog(filepath.Join(cfg.DataDir, deviceID+".db"))
	case "memory":
		return NewSQLiteLog(":memory:")
	case "none":
		return NopLog{}, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// NopLog discards operations, for setups that do not want a local log.
type NopLog struct{}

var _ bls.OperationLog = NopLog{}

func (NopLog) Record(op model.Operation) error           { return nil }
func (NopLog) List(limit int) ([]model.Operation, error) { return nil, nil }
func (NopLog) Close() error                              { return nil }
