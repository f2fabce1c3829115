package bls

import (
	"context"
	"io"

	"bls-go/internal/model"
)

// FileKey addressing: remote objects use the same relative paths as the
// content store (<hash>/<file>), so a key can be derived from a Book
// without asking the remote.

// UploadRequest asks the remote for permission and a destination for one
// file. The remote enforces the storage quota at this point, once per
// request, since usage can change from other devices between checks.
type UploadRequest struct {
	FileName string
	FileSize int64
	BookHash string
}

// UploadTicket is a granted upload destination: a pre-signed, time-limited
// URL plus the key the object will live under, and the account's usage
// numbers at grant time.
type UploadTicket struct {
	UploadURL string
	FileKey   string
	Usage     int64
	Quota     int64
}

// Remote is the device's view of the cloud side: ticket issuance and byte
// transfer against the object store, plus record exchange for the sync
// protocol. Implementations return *QuotaExceededError,
// *NotAuthenticatedError and *FileNotFoundError where applicable so the
// caller can surface specific messages.
type Remote interface {
	// IssueUpload performs the quota check and returns an upload ticket.
	IssueUpload(ctx context.Context, req UploadRequest) (*UploadTicket, error)

	// IssueDownload resolves a file key to a pre-signed download URL.
	IssueDownload(ctx context.Context, fileKey string) (string, error)

	// StatObject reports whether an object is present remotely and its
	// size. Used to size progress totals and to skip re-uploads of files
	// that already transferred; a remote that cannot check cheaply may
	// return (0, false, nil), which only costs a redundant re-upload.
	StatObject(ctx context.Context, fileKey string) (size int64, found bool, err error)

	// Put transfers size bytes from r to a pre-signed upload URL,
	// reporting transferred byte counts to progress as they happen.
	Put(ctx context.Context, url string, r io.Reader, size int64, progress func(n int64)) error

	// Get transfers the object behind a pre-signed download URL into w,
	// reporting transferred byte counts to progress.
	Get(ctx context.Context, url string, w io.Writer, progress func(n int64)) error

	// Record exchange. Push sends locally changed records; the remote is
	// a last-writer-wins replica. Pull returns records whose updatedAt
	// (or deletedAt) is strictly newer than since.

	PushBooks(ctx context.Context, books []model.Book) error
	PullBooks(ctx context.Context, since int64) ([]model.Book, error)

	PushConfigs(ctx context.Context, configs []model.BookConfig) error
	PullConfigs(ctx context.Context, since int64) ([]model.BookConfig, error)

	PushNotes(ctx context.Context, notes []model.BookNote) error
	PullNotes(ctx context.Context, since int64) ([]model.BookNote, error)
}
