package bls

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"bls-go/internal/model"
)

// ImportMode says what happens to the input after it is opened. The two
// legal shapes are a permanent import (with or without overwriting
// already-stored files) and a transient open; the constructors make any
// other combination unrepresentable.
type ImportMode struct {
	transient bool
	overwrite bool
}

// Permanent imports the book into the library. With overwrite set,
// already-stored files for the same fingerprint are rewritten.
func Permanent(overwrite bool) ImportMode { return ImportMode{overwrite: overwrite} }

// Transient opens the book for reading without adding it to the library:
// nothing is written to the content store or the catalog.
func Transient() ImportMode { return ImportMode{transient: true} }

// ImportOptions tunes a single import.
type ImportOptions struct {
	Mode ImportMode
	// SaveBook and SaveCover control whether the book bytes and the
	// extracted cover are persisted. Both default to true for permanent
	// imports; DefaultImportOptions sets them.
	SaveBook  bool
	SaveCover bool
}

// DefaultImportOptions is a permanent, non-overwriting import that saves
// both the book file and the cover.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{Mode: Permanent(false), SaveBook: true, SaveCover: true}
}

// ImportFile imports the file at path. The source path is recorded as the
// book's origin pointer for transient opens.
func (s *LibraryService) ImportFile(path string, opts ImportOptions) (*model.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImportError{Reason: "unreadable input", Err: err}
	}
	return s.Import(filepath.Base(path), data, path, opts)
}

// Import turns an input byte stream into a cataloged Book.
//
// The input is parsed by the document loader (plain text is first
// converted into a packaged book), fingerprinted, and deduplicated
// against the catalog: re-importing content that is already cataloged
// clears the entry's tombstone instead of duplicating it. An initial
// per-book config is written only on first-time import, so re-imports
// never clobber reading progress.
func (s *LibraryService) Import(name string, data []byte, origin string, opts ImportOptions) (*model.Book, error) {
	doc, err := s.loader.Load(name, data)
	if err != nil {
		return nil, &ImportError{Reason: "unsupported or unparsable document", Err: err}
	}
	if packaged(doc.Format) && doc.Chapters == 0 {
		return nil, &ImportError{Reason: "document has no chapters"}
	}

	// Identity is the fingerprint of the bytes the user handed us, so a
	// plain-text file and its packaged conversion share one identity.
	hash, err := Fingerprint(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ImportError{Reason: "fingerprinting input", Err: err}
	}

	stored := data
	if doc.Packaged != nil {
		stored = doc.Packaged
	}

	if opts.Mode.transient {
		return s.transientBook(hash, name, doc, origin, int64(len(stored))), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := millis(s.clock.Now())

	if existing := s.catalog.Get(hash); existing != nil {
		// Re-import of known content: revive the entry in place.
		existing.DeletedAt = nil
		existing.UpdatedAt = now
		if err := s.persistFiles(existing, stored, doc.Cover, opts); err != nil {
			return nil, err
		}
		if err := SaveCatalog(s.store, s.catalog); err != nil {
			return nil, err
		}
		s.logger.Info("book re-imported", "hash", hash, "title", existing.Title)
		return existing, nil
	}

	book := &model.Book{
		Hash:      hash,
		Format:    doc.Format,
		Title:     doc.Title,
		Author:    doc.Author,
		FileName:  name,
		Size:      int64(len(stored)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.SaveBook {
		book.DownloadedAt = &now
	} else {
		book.URL = origin
	}

	if err := s.persistFiles(book, stored, doc.Cover, opts); err != nil {
		return nil, err
	}
	if err := s.writeInitialConfig(hash, now); err != nil {
		return nil, err
	}

	s.catalog.Put(book)
	if err := SaveCatalog(s.store, s.catalog); err != nil {
		return nil, err
	}

	s.logger.Info("book imported", "hash", hash, "title", book.Title, "format", string(book.Format))
	return book, nil
}

// transientBook builds a Book record for an open-without-importing flow:
// it is returned to the caller but never entered into the catalog.
func (s *LibraryService) transientBook(hash, name string, doc *Document, origin string, size int64) *model.Book {
	now := millis(s.clock.Now())
	return &model.Book{
		Hash:      hash,
		Format:    doc.Format,
		Title:     doc.Title,
		Author:    doc.Author,
		FileName:  name,
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
		URL:       origin,
	}
}

// persistFiles writes the book bytes and cover into the content store,
// honoring SaveBook/SaveCover and the overwrite flag. Writes go through
// the store's atomic path, so a crash never leaves a half-written file
// that looks present.
func (s *LibraryService) persistFiles(book *model.Book, stored, cover []byte, opts ImportOptions) error {
	if opts.SaveBook {
		path := BookPath(book)
		ok, err := s.store.Exists(DirBooks, path)
		if err != nil {
			return fmt.Errorf("checking for book file: %w", err)
		}
		if !ok || opts.Mode.overwrite {
			if err := s.store.WriteFile(DirBooks, path, stored); err != nil {
				return fmt.Errorf("writing book file: %w", err)
			}
		}
		now := millis(s.clock.Now())
		book.DownloadedAt = &now
	}

	if opts.SaveCover && len(cover) > 0 {
		path := CoverPath(book.Hash)
		ok, err := s.store.Exists(DirBooks, path)
		if err != nil {
			return fmt.Errorf("checking for cover: %w", err)
		}
		if !ok || opts.Mode.overwrite {
			if err := s.store.WriteFile(DirBooks, path, cover); err != nil {
				return fmt.Errorf("writing cover: %w", err)
			}
		}
		book.CoverPath = path
	}
	return nil
}

// writeInitialConfig creates the per-book config for first-time imports
// only: an existing config means existing reading progress.
func (s *LibraryService) writeInitialConfig(hash string, now int64) error {
	ok, err := s.store.Exists(DirBooks, ConfigPath(hash))
	if err != nil {
		return fmt.Errorf("checking for config: %w", err)
	}
	if ok {
		return nil
	}
	cfg := &model.BookConfig{
		BookHash:    hash,
		FontScale:   s.defaults.FontScale,
		Theme:       s.defaults.Theme,
		SearchScope: s.defaults.SearchScope,
		CaseMatch:   s.defaults.CaseMatch,
		UpdatedAt:   now,
	}
	return s.SaveConfig(cfg)
}

// packaged reports whether a format has a chapter list to validate.
func packaged(f model.BookFormat) bool {
	return f == model.FormatEPUB || f == model.FormatTXT || f == model.FormatMOBI
}
