package bls

import (
	"fmt"
	"io"
	"sync"

	"bls-go/internal/model"
)

// Encryptor optionally encrypts book files before upload and decrypts
// them after download. Covers and catalog records stay plaintext.
// Implementations live in internal/encryption.
type Encryptor interface {
	// Enabled reports whether content should be encrypted at rest.
	Enabled() bool
	Encrypt(r io.Reader, w io.Writer) error
	Decrypt(r io.Reader, w io.Writer) error
}

// LibraryService is the orchestration layer that coordinates the content
// store, document loader, remote and catalog to perform the high-level
// library operations needed by the CLI.
//
// The catalog is mutated only under mu (read-modify-write of the whole
// in-memory catalog, persisted as one JSON document). File transfers for
// different books may run concurrently; catalog writers may not.
type LibraryService struct {
	mu       sync.Mutex
	store    ContentStore
	remote   Remote
	loader   DocumentLoader
	enc      Encryptor
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	defaults ReaderDefaults
	catalog  *Catalog
}

// NewLibraryService creates a LibraryService over an already-loaded
// catalog.
func NewLibraryService(store ContentStore, remote Remote, loader DocumentLoader, enc Encryptor, logger Logger, clock Clock, idgen IDGenerator, defaults ReaderDefaults, catalog *Catalog) *LibraryService {
	return &LibraryService{
		store:    store,
		remote:   remote,
		loader:   loader,
		enc:      enc,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		defaults: defaults,
		catalog:  catalog,
	}
}

// Books returns the user-visible catalog entries in insertion order.
func (s *LibraryService) Books() []*model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Active()
}

// Book returns the catalog entry for hash, tombstoned or not, or nil.
func (s *LibraryService) Book(hash string) *model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Get(hash)
}

// Delete soft-deletes a book: the record stays in the catalog as a
// tombstone so the deletion can propagate to other devices, while the
// local book file and cover are removed. Cloud objects are left for the
// remote to purge.
func (s *LibraryService) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.catalog.Get(hash)
	if b == nil || b.Deleted() {
		return fmt.Errorf("no such book: %s", hash)
	}

	now := millis(s.clock.Now())
	b.DeletedAt = &now
	b.UpdatedAt = now
	b.DownloadedAt = nil
	b.CoverPath = ""

	if err := s.store.RemoveFile(DirBooks, BookPath(b)); err != nil {
		return fmt.Errorf("removing book file: %w", err)
	}
	if err := s.store.RemoveFile(DirBooks, CoverPath(hash)); err != nil {
		return fmt.Errorf("removing cover: %w", err)
	}

	if err := SaveCatalog(s.store, s.catalog); err != nil {
		return err
	}
	s.logger.Info("book deleted", "hash", hash)
	return nil
}

// LoadConfig reads the per-book config, or nil when none exists yet.
func (s *LibraryService) LoadConfig(hash string) (*model.BookConfig, error) {
	ok, err := s.store.Exists(DirBooks, ConfigPath(hash))
	if err != nil {
		return nil, fmt.Errorf("checking for config: %w", err)
	}
	if !ok {
		return nil, nil
	}
	data, err := s.store.ReadFile(DirBooks, ConfigPath(hash))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return DecodeConfig(data, s.defaults)
}

// SaveConfig persists a per-book config with diff-against-defaults
// encoding.
func (s *LibraryService) SaveConfig(cfg *model.BookConfig) error {
	data, err := EncodeConfig(cfg, s.defaults)
	if err != nil {
		return err
	}
	if err := s.store.WriteFile(DirBooks, ConfigPath(cfg.BookHash), data); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
