package database

import (
	"path/filepath"
	"testing"

	"bls-go/internal/config"
	"bls-go/internal/model"
)

func newTestLog(t *testing.T) *SQLiteLog {
	t.Helper()
	log, err := NewSQLiteLog(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteLog() error = %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestSQLiteLog_RecordAndList(t *testing.T) {
	log := newTestLog(t)

	ops := []model.Operation{
		{ID: "op-1", Kind: "Import", Detail: "abc123", Status: "ok", StartedAt: 100, EndedAt: 150},
		{ID: "op-2", Kind: "Upload", Detail: "abc123", Status: "failed", Error: "quota exceeded", StartedAt: 200, EndedAt: 210},
		{ID: "op-3", Kind: "Sync", Detail: "books=1 configs=1 notes=0", Status: "ok", StartedAt: 300, EndedAt: 420},
	}
	for _, op := range ops {
		if err := log.Record(op); err != nil {
			t.Fatalf("Record(%s) error = %v", op.ID, err)
		}
	}

	got, err := log.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(got))
	}

	// Newest first.
	for i, wantID := range []string{"op-3", "op-2", "op-1"} {
		if got[i].ID != wantID {
			t.Errorf("List()[%d].ID = %q, want %q", i, got[i].ID, wantID)
		}
	}

	if got[1].Status != "failed" || got[1].Error != "quota exceeded" {
		t.Errorf("failed op round trip = %+v", got[1])
	}
	if got[2].StartedAt != 100 || got[2].EndedAt != 150 {
		t.Errorf("timestamps = %d/%d, want 100/150", got[2].StartedAt, got[2].EndedAt)
	}
}

func TestSQLiteLog_List_Limit(t *testing.T) {
	log := newTestLog(t)

	for i := int64(1); i <= 5; i++ {
		op := model.Operation{Kind: "Sync", Status: "ok", StartedAt: i * 100, EndedAt: i*100 + 10}
		if err := log.Record(op); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := log.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(List(2)) = %d, want 2", len(got))
	}
	if got[0].StartedAt != 500 || got[1].StartedAt != 400 {
		t.Errorf("List(2) started_at = %d, %d, want 500, 400", got[0].StartedAt, got[1].StartedAt)
	}
}

func TestSQLiteLog_Record_FillsID(t *testing.T) {
	log := newTestLog(t)

	if err := log.Record(model.Operation{Kind: "Import", Status: "ok", StartedAt: 1, EndedAt: 2}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := log.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(got))
	}
	if got[0].ID == "" {
		t.Error("Record() left ID empty, want generated id")
	}
}

func TestNewSQLiteLog_CreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "device-1.db")

	log, err := NewSQLiteLog(path)
	if err != nil {
		t.Fatalf("NewSQLiteLog() error = %v", err)
	}
	defer log.Close()

	if err := log.Record(model.Operation{Kind: "Import", Status: "ok"}); err != nil {
		t.Errorf("Record() error = %v", err)
	}
}

func TestNewLogFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.DatabaseConfig{Type: "memory"}},
		{name: "sqlite", cfg: config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()}},
		{name: "sqlite without data_dir", cfg: config.DatabaseConfig{Type: "sqlite"}, wantErr: true},
		{name: "none", cfg: config.DatabaseConfig{Type: "none"}},
		{name: "unknown", cfg: config.DatabaseConfig{Type: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLogFromConfig(tt.cfg, "device-1")
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogFromConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got == nil {
				t.Error("NewLogFromConfig() returned nil log")
			}
			if got != nil {
				got.Close()
			}
		})
	}
}
