package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBlsHandler_Handle(t *testing.T) {
	ts := time.Date(2025, 3, 10, 9, 30, 45, 0, time.UTC)

	tests := []struct {
		name     string
		deviceID string
		level    slog.Level
		message  string
		attrs    []slog.Attr
		want     string
	}{
		{
			name:     "basic info message",
			deviceID: "device-123",
			level:    slog.LevelInfo,
			message:  "book imported",
			want:     "2025-03-10T09:30:45Z\tINFO\tdevice-123\tbook imported\n",
		},
		{
			name:     "debug level",
			deviceID: "device-456",
			level:    slog.LevelDebug,
			message:  "checking remote object",
			want:     "2025-03-10T09:30:45Z\tDEBUG\tdevice-456\tchecking remote object\n",
		},
		{
			name:     "with record attrs",
			deviceID: "device-789",
			level:    slog.LevelInfo,
			message:  "uploaded",
			attrs:    []slog.Attr{slog.String("hash", "abc123"), slog.Int("size", 42)},
			want:     "2025-03-10T09:30:45Z\tINFO\tdevice-789\tuploaded\thash=abc123\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &blsHandler{w: &buf, deviceID: tt.deviceID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestBlsHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &blsHandler{w: &buf, deviceID: "device-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "sync")}).(*blsHandler)

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "push", 0)
	r.AddAttrs(slog.String("collection", "books"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=sync") {
		t.Errorf("expected pre-set attr component=sync, got: %q", got)
	}
	if !strings.Contains(got, "collection=books") {
		t.Errorf("expected record attr collection=books, got: %q", got)
	}
}

func TestBlsHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &blsHandler{w: &buf, deviceID: "device-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*blsHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestBlsHandler_Enabled(t *testing.T) {
	h := &blsHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-device")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, "bls.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "test-device") {
		t.Errorf("log line missing device id: %q", got)
	}
	if !strings.Contains(got, "hello\tk=v") {
		t.Errorf("log line missing message and attr: %q", got)
	}
}
