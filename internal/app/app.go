package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"bls-go/internal/bls"
	"bls-go/internal/config"
	"bls-go/internal/database"
	"bls-go/internal/doc"
	"bls-go/internal/encryption"
	"bls-go/internal/model"
	"bls-go/internal/remote"
	"bls-go/internal/store"
)

// LibraryApp is the application layer between the CLI and LibraryService.
// It constructs all dependencies from config, exposes high-level
// operations, records their outcomes in the operation log, and manages
// resource lifecycles on Close.
type LibraryApp struct {
	cfg     *config.Config
	store   bls.ContentStore
	remote  bls.Remote
	oplog   bls.OperationLog
	service *bls.LibraryService
	syncer  *bls.Syncer
	logger  bls.Logger
	clock   bls.Clock
	logFile *os.File
}

// NewLibraryApp creates a fully wired LibraryApp from the given config.
// The caller must call Close when done.
func NewLibraryApp(ctx context.Context, cfg *config.Config) (*LibraryApp, error) {
	st, err := store.NewStoreFromConfig(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating content store: %w", err)
	}

	rem, err := remote.NewRemoteFromConfig(ctx, cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("creating remote: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	oplog, err := database.NewLogFromConfig(cfg.Database, cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("creating operation log: %w", err)
	}

	slogger, logFile, err := newLogger(cfg.LogDir, cfg.DeviceID)
	if err != nil {
		oplog.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	catalog, err := bls.LoadCatalog(st, logger)
	if err != nil {
		oplog.Close()
		logFile.Close()
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	clock := bls.RealClock{}
	svc := bls.NewLibraryService(st, rem, doc.NewLoader(), enc, logger, clock, bls.UUIDGenerator{}, cfg.Reader, catalog)

	debounce := time.Duration(cfg.Sync.DebounceSeconds) * time.Second
	syncer := bls.NewSyncer(svc, debounce, clock, logger)

	return &LibraryApp{
		cfg:     cfg,
		store:   st,
		remote:  rem,
		oplog:   oplog,
		service: svc,
		syncer:  syncer,
		logger:  logger,
		clock:   clock,
		logFile: logFile,
	}, nil
}

// Service exposes the underlying library service for operations that do
// not need recording.
func (a *LibraryApp) Service() *bls.LibraryService { return a.service }

// Syncer exposes the sync scheduler.
func (a *LibraryApp) Syncer() *bls.Syncer { return a.syncer }

// record wraps one operation with timing and writes its outcome to the
// operation log. The original error is returned unchanged.
func (a *LibraryApp) record(kind, detail string, fn func() error) error {
	started := millisNow(a.clock)
	err := fn()

	op := model.Operation{
		Kind:      kind,
		Detail:    detail,
		Status:    "ok",
		StartedAt: started,
		EndedAt:   millisNow(a.clock),
	}
	if err != nil {
		op.Status = "failed"
		op.Error = err.Error()
	}
	if rerr := a.oplog.Record(op); rerr != nil {
		a.logger.Warn("recording operation failed", "kind", kind, "error", rerr)
	}
	return err
}

func millisNow(clock bls.Clock) int64 { return clock.Now().UnixMilli() }

// Import imports the file at path into the library.
func (a *LibraryApp) Import(path string, overwrite bool) (*model.Book, error) {
	var book *model.Book
	err := a.record("Import", path, func() error {
		opts := bls.DefaultImportOptions()
		opts.Mode = bls.Permanent(overwrite)
		b, err := a.service.ImportFile(path, opts)
		book = b
		return err
	})
	return book, err
}

// Open opens the file at path transiently: the book is parsed and
// fingerprinted but nothing is added to the library.
func (a *LibraryApp) Open(path string) (*model.Book, error) {
	opts := bls.DefaultImportOptions()
	opts.Mode = bls.Transient()
	return a.service.ImportFile(path, opts)
}

// Books returns the visible catalog entries.
func (a *LibraryApp) Books() []*model.Book { return a.service.Books() }

// Delete soft-deletes a book from the library.
func (a *LibraryApp) Delete(hash string) error {
	return a.record("Delete", hash, func() error {
		return a.service.Delete(hash)
	})
}

// Upload pushes a book's files to the remote.
func (a *LibraryApp) Upload(ctx context.Context, hash string, onProgress func(pct int)) error {
	return a.record("Upload", hash, func() error {
		return a.service.Upload(ctx, hash, onProgress)
	})
}

// Download fetches a book's files from the remote.
func (a *LibraryApp) Download(ctx context.Context, hash string, onlyCover bool, onProgress func(pct int)) error {
	return a.record("Download", hash, func() error {
		return a.service.Download(ctx, hash, onlyCover, onProgress)
	})
}

// Sync runs one full sync round against the remote.
func (a *LibraryApp) Sync(ctx context.Context) error {
	return a.record("Sync", "", func() error {
		return a.syncer.SyncNow(ctx)
	})
}

// History returns the most recent recorded operations.
func (a *LibraryApp) History(limit int) ([]model.Operation, error) {
	return a.oplog.List(limit)
}

// Close releases the operation log and the log file.
func (a *LibraryApp) Close() error {
	var firstErr error
	if err := a.oplog.Close(); err != nil {
		firstErr = fmt.Errorf("closing operation log: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
