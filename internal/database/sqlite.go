package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"bls-go/internal/bls"
	"bls-go/internal/database/migrations"
	"bls-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLog implements the OperationLog interface using SQLite.
type SQLiteLog struct {
	db *sql.DB
}

var _ bls.OperationLog = (*SQLiteLog)(nil)

// NewSQLiteLog opens (creating if needed) the operation log at path and
// migrates it to the latest schema. path can be ":memory:" for tests.
func NewSQLiteLog(path string) (*SQLiteLog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteLog{db: db}, nil
}

func (s *SQLiteLog) Record(op model.Operation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO operations (id, kind, detail, status, error, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.Kind, op.Detail, op.Status, op.Error, op.StartedAt, op.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	return nil
}

func (s *SQLiteLog) List(limit int) ([]model.Operation, error) {
	query := `SELECT id, kind, detail, status, error, started_at, ended_at
		FROM operations ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []model.Operation
	for rows.Next() {
		var op model.Operation
		if err := rows.Scan(&op.ID, &op.Kind, &op.Detail, &op.Status, &op.Error, &op.StartedAt, &op.EndedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteLog) Close() error {
	return s.db.Close()
}
