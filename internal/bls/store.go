package bls

import "io"

// BaseDir is the logical root a content-store path is resolved against.
// The core never addresses the physical filesystem directly; every path
// is relative to one of these roots.
type BaseDir int

const (
	// DirNone resolves paths as given (absolute or caller-relative).
	// Used for transient opens of files outside the library.
	DirNone BaseDir = iota
	// DirSettings holds device-level state: sync cursors, auth token.
	DirSettings
	// DirBooks holds the catalog file and per-book content directories.
	DirBooks
	// DirCache holds rebuildable artifacts.
	DirCache
)

// ContentStore is durable local byte storage addressed by logical base
// directory plus relative path. Writes must be atomic (temp file +
// rename) so that a half-written file is never observed as present: an
// Exists check is also a fully-written check.
type ContentStore interface {
	// Exists reports whether a fully-written file is present.
	Exists(dir BaseDir, path string) (bool, error)

	// ReadFile returns the full contents of a file.
	ReadFile(dir BaseDir, path string) ([]byte, error)

	// WriteFile atomically replaces the file at path with data, creating
	// parent directories as needed.
	WriteFile(dir BaseDir, path string, data []byte) error

	// Open returns a streaming reader over the file.
	Open(dir BaseDir, path string) (io.ReadCloser, error)

	// Put streams r into the file at path atomically and returns the
	// number of bytes written.
	Put(dir BaseDir, path string, r io.Reader) (int64, error)

	// FileSize returns the size in bytes of a fully-written file.
	FileSize(dir BaseDir, path string) (int64, error)

	// RemoveFile deletes the file at path. Removing a missing file is not
	// an error.
	RemoveFile(dir BaseDir, path string) error

	// CreateDir creates the directory at path; with recursive set, all
	// missing parents too.
	CreateDir(dir BaseDir, path string, recursive bool) error
}
