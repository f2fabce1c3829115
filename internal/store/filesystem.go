package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bls-go/internal/bls"
)

// FileSystemStore is a filesystem-backed ContentStore rooted at a base
// directory:
//
//	<root>/
//	  settings/   (sync cursors, auth token)
//	  books/      (library.json and per-book <hash>/ directories)
//	  cache/      (staged ciphertext, rebuildable artifacts)
//
// All writes are atomic (temp file in the destination directory +
// rename), so a path either holds a fully-written file or nothing.
type FileSystemStore struct {
	root     string
	settings string
	books    string
	cache    string
}

// NewFileSystemStore creates the directory structure under root.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	s := &FileSystemStore{
		root:     root,
		settings: filepath.Join(root, "settings"),
		books:    filepath.Join(root, "books"),
		cache:    filepath.Join(root, "cache"),
	}
	for _, dir := range []string{s.settings, s.books, s.cache} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return s, nil
}

func (s *FileSystemStore) resolve(dir bls.BaseDir, path string) (string, error) {
	switch dir {
	case bls.DirNone:
		return path, nil
	case bls.DirSettings:
		return filepath.Join(s.settings, filepath.FromSlash(path)), nil
	case bls.DirBooks:
		return filepath.Join(s.books, filepath.FromSlash(path)), nil
	case bls.DirCache:
		return filepath.Join(s.cache, filepath.FromSlash(path)), nil
	default:
		return "", fmt.Errorf("unknown base directory: %d", dir)
	}
}

func (s *FileSystemStore) Exists(dir bls.BaseDir, path string) (bool, error) {
	p, err := s.resolve(dir, path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return !info.IsDir(), nil
}

func (s *FileSystemStore) ReadFile(dir bls.BaseDir, path string) ([]byte, error) {
	p, err := s.resolve(dir, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (s *FileSystemStore) WriteFile(dir bls.BaseDir, path string, data []byte) error {
	_, err := s.Put(dir, path, bytes.NewReader(data))
	return err
}

func (s *FileSystemStore) Open(dir bls.BaseDir, path string) (io.ReadCloser, error) {
	p, err := s.resolve(dir, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}

// Put streams r into the file atomically. The temp file lives in the
// destination directory so the final rename stays on one filesystem.
func (s *FileSystemStore) Put(dir bls.BaseDir, path string, r io.Reader) (int64, error) {
	p, err := s.resolve(dir, path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return 0, fmt.Errorf("creating parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		return 0, fmt.Errorf("committing %s: %w", path, err)
	}

	success = true
	return written, nil
}

func (s *FileSystemStore) FileSize(dir bls.BaseDir, path string) (int64, error) {
	p, err := s.resolve(dir, path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}

func (s *FileSystemStore) RemoveFile(dir bls.BaseDir, path string) error {
	p, err := s.resolve(dir, path)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (s *FileSystemStore) CreateDir(dir bls.BaseDir, path string, recursive bool) error {
	p, err := s.resolve(dir, path)
	if err != nil {
		return err
	}
	if recursive {
		err = os.MkdirAll(p, 0755)
	} else {
		err = os.Mkdir(p, 0755)
	}
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// Compile-time check that FileSystemStore implements bls.ContentStore
var _ bls.ContentStore = (*FileSystemStore)(nil)
