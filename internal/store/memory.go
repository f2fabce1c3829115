package store

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"sync"

	"bls-go/internal/bls"
)

// MemoryStore is an in-memory implementation of the ContentStore
// interface, useful for testing. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte // "<dir>:<path>" -> contents
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func key(dir bls.BaseDir, path string) string {
	return strconv.Itoa(int(dir)) + ":" + path
}

func (m *MemoryStore) Exists(dir bls.BaseDir, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[key(dir, path)]
	return ok, nil
}

func (m *MemoryStore) ReadFile(dir bls.BaseDir, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[key(dir, path)]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) WriteFile(dir bls.BaseDir, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[key(dir, path)] = cp
	return nil
}

func (m *MemoryStore) Open(dir bls.BaseDir, path string) (io.ReadCloser, error) {
	data, err := m.ReadFile(dir, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) Put(dir bls.BaseDir, path string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		// Mirror the atomic filesystem behavior: a failed producer leaves
		// the previous contents in place.
		return 0, fmt.Errorf("reading content for %s: %w", path, err)
	}
	if err := m.WriteFile(dir, path, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (m *MemoryStore) FileSize(dir bls.BaseDir, path string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[key(dir, path)]
	if !ok {
		return 0, fmt.Errorf("no such file: %s", path)
	}
	return int64(len(data)), nil
}

func (m *MemoryStore) RemoveFile(dir bls.BaseDir, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key(dir, path))
	return nil
}

func (m *MemoryStore) CreateDir(bls.BaseDir, string, bool) error {
	// Directories are implicit in the flat map.
	return nil
}

// Compile-time check that MemoryStore implements bls.ContentStore
var _ bls.ContentStore = (*MemoryStore)(nil)
