package bls

import "fmt"

// The error taxonomy mirrors what the presentation layer needs to
// distinguish: a failed import, a failed transfer in either direction,
// quota exhaustion (with the numbers the user needs), a bad token, and a
// book file that exists nowhere. Callers match with errors.As.

// ImportError reports a document that could not be imported: unreadable,
// unsupported format, or empty after parsing.
type ImportError struct {
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("import failed: %s", e.Reason)
}

func (e *ImportError) Unwrap() error { return e.Err }

// UploadError reports a failed upload: either no files were transferable
// at all, or the transport failed partway. Files that did transfer stay
// committed remotely; a retry only re-sends what is missing.
type UploadError struct {
	BookHash string
	Err      error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed for %s: %v", e.BookHash, e.Err)
	}
	return fmt.Sprintf("upload failed for %s: no files to transfer", e.BookHash)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DownloadError is the download-direction counterpart of UploadError.
type DownloadError struct {
	BookHash string
	Err      error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download failed for %s: %v", e.BookHash, e.Err)
	}
	return fmt.Sprintf("download failed for %s: no files to transfer", e.BookHash)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// QuotaExceededError is returned when the remote refuses an upload
// because usage plus the incoming file would exceed the quota. Usage and
// Quota are bytes as reported by the remote at refusal time.
type QuotaExceededError struct {
	Usage  int64
	Quota  int64
	Needed int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded: usage %d of %d bytes, %d more needed", e.Usage, e.Quota, e.Needed)
}

// NotAuthenticatedError reports a missing or rejected bearer token.
type NotAuthenticatedError struct {
	Err error
}

func (e *NotAuthenticatedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("not authenticated: %v", e.Err)
	}
	return "not authenticated"
}

func (e *NotAuthenticatedError) Unwrap() error { return e.Err }

// FileNotFoundError reports a book file that is absent both locally and
// remotely.
type FileNotFoundError struct {
	BookHash string
	Key      string
}

func (e *FileNotFoundError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("file not found for book %s: %s", e.BookHash, e.Key)
	}
	return fmt.Sprintf("file not found for book %s", e.BookHash)
}
