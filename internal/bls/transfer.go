package bls

import (
	"context"
	"fmt"
	"io"
	"path"

	"bls-go/internal/model"
)

// Transfer engine: moves the cover and book file between the content
// store and the remote object store. All files of one call share a single
// monotonic 0–100 progress value, files move in a fixed order (cover
// before book file) so retries report reproducible percentages, and every
// local write is atomic, so an interrupted transfer is always safe to
// retry.

// progressTracker folds per-file byte counts into one monotonic
// percentage across a known multi-file total.
type progressTracker struct {
	total int64
	done  int64
	last  int
	emit  func(pct int)
}

func newProgressTracker(total int64, emit func(int)) *progressTracker {
	if emit == nil {
		emit = func(int) {}
	}
	return &progressTracker{total: total, emit: emit, last: -1}
}

func (p *progressTracker) add(n int64) {
	p.done += n
	if p.total <= 0 {
		return
	}
	pct := int(p.done * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct > p.last {
		p.last = pct
		p.emit(pct)
	}
}

// finish reports completion. Progress reaches exactly 100 on success even
// when every file was skipped and no bytes moved.
func (p *progressTracker) finish() {
	if p.last < 100 {
		p.last = 100
		p.emit(100)
	}
}

// transferFile is one unit of work within an upload or download.
type transferFile struct {
	key      string  // remote object key, same shape as the store path
	localDir BaseDir // where the local copy lives (Books, or Cache for staged ciphertext)
	local    string
	size     int64
	isBook   bool
}

// Upload moves the book's cover and book file to the remote store. If the
// book file is absent locally but the record carries an origin URL, the
// file is first fetched into the content store. Quota is enforced by the
// remote at ticket issuance, once per file. Objects already present
// remotely with the expected size are skipped, which makes a retry after
// partial failure re-send only what is missing.
func (s *LibraryService) Upload(ctx context.Context, hash string, onProgress func(pct int)) error {
	b := s.Book(hash)
	if b == nil {
		return &UploadError{BookHash: hash, Err: fmt.Errorf("not in catalog")}
	}

	files, err := s.uploadSet(ctx, b)
	if err != nil {
		return &UploadError{BookHash: hash, Err: err}
	}
	if len(files) == 0 {
		return &UploadError{BookHash: hash}
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	tracker := newProgressTracker(total, onProgress)

	for _, f := range files {
		if err := s.uploadOne(ctx, b, f, tracker); err != nil {
			return &UploadError{BookHash: hash, Err: err}
		}
	}

	s.mu.Lock()
	now := millis(s.clock.Now())
	b.UploadedAt = &now
	b.DownloadedAt = &now
	b.DeletedAt = nil
	b.UpdatedAt = now
	err = SaveCatalog(s.store, s.catalog)
	s.mu.Unlock()
	if err != nil {
		return &UploadError{BookHash: hash, Err: err}
	}

	tracker.finish()
	s.logger.Info("book uploaded", "hash", hash, "files", len(files), "bytes", total)
	return nil
}

// uploadSet determines which files need to move, fetching the book file
// from its origin URL first when it is not in the store.
func (s *LibraryService) uploadSet(ctx context.Context, b *model.Book) ([]transferFile, error) {
	var files []transferFile

	coverPath := CoverPath(b.Hash)
	if ok, err := s.store.Exists(DirBooks, coverPath); err != nil {
		return nil, err
	} else if ok {
		size, err := s.store.FileSize(DirBooks, coverPath)
		if err != nil {
			return nil, err
		}
		files = append(files, transferFile{key: coverPath, localDir: DirBooks, local: coverPath, size: size})
	}

	bookPath := BookPath(b)
	ok, err := s.store.Exists(DirBooks, bookPath)
	if err != nil {
		return nil, err
	}
	if !ok && b.URL != "" {
		if err := s.fetchOrigin(ctx, b, bookPath); err != nil {
			return nil, fmt.Errorf("fetching origin %s: %w", b.URL, err)
		}
		ok = true
	}
	if ok {
		f := transferFile{key: bookPath, localDir: DirBooks, local: bookPath, isBook: true}
		if s.enc != nil && s.enc.Enabled() {
			// Stage the ciphertext so its exact size is known before the
			// ticket is requested and progress totals are computed.
			staged, size, err := s.stageEncrypted(b.Hash, bookPath)
			if err != nil {
				return nil, err
			}
			f.localDir, f.local, f.size = DirCache, staged, size
		} else {
			size, err := s.store.FileSize(DirBooks, bookPath)
			if err != nil {
				return nil, err
			}
			f.size = size
		}
		files = append(files, f)
	}

	return files, nil
}

func (s *LibraryService) uploadOne(ctx context.Context, b *model.Book, f transferFile, tracker *progressTracker) error {
	if size, found, err := s.remote.StatObject(ctx, f.key); err == nil && found && size == f.size {
		s.logger.Debug("remote object up to date, skipping", "key", f.key)
		tracker.add(f.size)
		return nil
	}

	ticket, err := s.remote.IssueUpload(ctx, UploadRequest{
		FileName: path.Base(f.key),
		FileSize: f.size,
		BookHash: b.Hash,
	})
	if err != nil {
		return err
	}

	r, err := s.store.Open(f.localDir, f.local)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.local, err)
	}
	defer r.Close()

	if err := s.remote.Put(ctx, ticket.UploadURL, r, f.size, tracker.add); err != nil {
		return fmt.Errorf("transferring %s: %w", f.key, err)
	}
	return nil
}

// Download mirrors Upload: it fetches the cover and/or book file from the
// remote into the content store. A cover missing remotely is skipped; a
// book file missing both locally and remotely is a FileNotFoundError.
// DownloadedAt is set only once the book file is locally present.
func (s *LibraryService) Download(ctx context.Context, hash string, onlyCover bool, onProgress func(pct int)) error {
	b := s.Book(hash)
	if b == nil {
		return &DownloadError{BookHash: hash, Err: fmt.Errorf("not in catalog")}
	}

	var files []transferFile

	coverPath := CoverPath(hash)
	if ok, err := s.store.Exists(DirBooks, coverPath); err != nil {
		return &DownloadError{BookHash: hash, Err: err}
	} else if !ok {
		if size, found, err := s.remote.StatObject(ctx, coverPath); err != nil {
			return &DownloadError{BookHash: hash, Err: err}
		} else if found {
			files = append(files, transferFile{key: coverPath, localDir: DirBooks, local: coverPath, size: size})
		} else {
			s.logger.Debug("no remote cover", "hash", hash)
		}
	}

	bookPath := BookPath(b)
	bookLocal, err := s.store.Exists(DirBooks, bookPath)
	if err != nil {
		return &DownloadError{BookHash: hash, Err: err}
	}
	if !onlyCover && !bookLocal {
		size, found, err := s.remote.StatObject(ctx, bookPath)
		if err != nil {
			return &DownloadError{BookHash: hash, Err: err}
		}
		if !found {
			return &DownloadError{BookHash: hash, Err: &FileNotFoundError{BookHash: hash, Key: bookPath}}
		}
		files = append(files, transferFile{key: bookPath, localDir: DirBooks, local: bookPath, size: size, isBook: true})
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	tracker := newProgressTracker(total, onProgress)

	gotBook := false
	for _, f := range files {
		if err := s.downloadOne(ctx, f, tracker); err != nil {
			return &DownloadError{BookHash: hash, Err: err}
		}
		if f.isBook {
			gotBook = true
		}
	}

	if gotBook || (bookLocal && !onlyCover) {
		s.mu.Lock()
		now := millis(s.clock.Now())
		b.DownloadedAt = &now
		err = SaveCatalog(s.store, s.catalog)
		s.mu.Unlock()
		if err != nil {
			return &DownloadError{BookHash: hash, Err: err}
		}
	}

	tracker.finish()
	s.logger.Info("book downloaded", "hash", hash, "files", len(files))
	return nil
}

func (s *LibraryService) downloadOne(ctx context.Context, f transferFile, tracker *progressTracker) error {
	url, err := s.remote.IssueDownload(ctx, f.key)
	if err != nil {
		return err
	}

	if f.isBook && s.enc != nil && s.enc.Enabled() {
		staged := "stage/" + path.Base(f.key) + ".age"
		err := s.putStream(DirCache, staged, func(w io.Writer) error {
			return s.remote.Get(ctx, url, w, tracker.add)
		})
		if err != nil {
			return fmt.Errorf("transferring %s: %w", f.key, err)
		}
		defer s.store.RemoveFile(DirCache, staged)

		cipher, err := s.store.Open(DirCache, staged)
		if err != nil {
			return err
		}
		defer cipher.Close()
		if err := s.putStream(f.localDir, f.local, func(w io.Writer) error {
			return s.enc.Decrypt(cipher, w)
		}); err != nil {
			return fmt.Errorf("decrypting %s: %w", f.key, err)
		}
		return nil
	}

	err = s.putStream(f.localDir, f.local, func(w io.Writer) error {
		return s.remote.Get(ctx, url, w, tracker.add)
	})
	if err != nil {
		return fmt.Errorf("transferring %s: %w", f.key, err)
	}
	return nil
}

// fetchOrigin pulls the book bytes from the record's origin URL into the
// content store, making a URL-only book uploadable.
func (s *LibraryService) fetchOrigin(ctx context.Context, b *model.Book, bookPath string) error {
	return s.putStream(DirBooks, bookPath, func(w io.Writer) error {
		return s.remote.Get(ctx, b.URL, w, nil)
	})
}

// stageEncrypted writes the ciphertext of the book file into the cache
// and returns its path and size.
func (s *LibraryService) stageEncrypted(hash, bookPath string) (string, int64, error) {
	staged := "stage/" + hash + ".age"

	plain, err := s.store.Open(DirBooks, bookPath)
	if err != nil {
		return "", 0, err
	}
	defer plain.Close()

	if err := s.putStream(DirCache, staged, func(w io.Writer) error {
		return s.enc.Encrypt(plain, w)
	}); err != nil {
		return "", 0, fmt.Errorf("encrypting book file: %w", err)
	}

	size, err := s.store.FileSize(DirCache, staged)
	if err != nil {
		return "", 0, err
	}
	return staged, size, nil
}

// putStream feeds a writer-shaped producer into the store's atomic Put.
// If the producer fails, the partial write is discarded and the target
// path is left untouched.
func (s *LibraryService) putStream(dir BaseDir, path string, write func(w io.Writer) error) error {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := s.store.Put(dir, path, pr)
		done <- err
	}()

	werr := write(pw)
	pw.CloseWithError(werr)
	perr := <-done

	if werr != nil {
		return werr
	}
	return perr
}
