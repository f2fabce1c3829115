package bls

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bls-go/internal/model"
)

// cursorsFile is the per-device sync high-water mark, under the Settings
// base directory.
const cursorsFile = "sync_state.json"

// LoadCursors reads the device's sync cursors. A missing file means the
// device has never completed a round: all cursors at zero.
func (s *LibraryService) LoadCursors() (*model.SyncCursors, error) {
	ok, err := s.store.Exists(DirSettings, cursorsFile)
	if err != nil {
		return nil, fmt.Errorf("checking for sync cursors: %w", err)
	}
	if !ok {
		return &model.SyncCursors{}, nil
	}
	data, err := s.store.ReadFile(DirSettings, cursorsFile)
	if err != nil {
		return nil, fmt.Errorf("reading sync cursors: %w", err)
	}
	var cur model.SyncCursors
	if err := json.Unmarshal(data, &cur); err != nil {
		return nil, fmt.Errorf("decoding sync cursors: %w", err)
	}
	return &cur, nil
}

func (s *LibraryService) saveCursors(cur *model.SyncCursors) error {
	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sync cursors: %w", err)
	}
	if err := s.store.WriteFile(DirSettings, cursorsFile, data); err != nil {
		return fmt.Errorf("writing sync cursors: %w", err)
	}
	return nil
}

// SyncRound reconciles the catalog, per-book configs and notes with the
// remote: one push+pull+merge per collection. A collection's cursor
// advances to the round start time only after its push and pull both
// succeed, so a failed round re-sends and re-fetches the same record set
// next time instead of silently skipping it. Records mutated while the
// round is in flight stay above the new cursor and go out next round.
func (s *LibraryService) SyncRound(ctx context.Context) error {
	cur, err := s.LoadCursors()
	if err != nil {
		return err
	}
	start := millis(s.clock.Now())

	if err := s.syncBooks(ctx, cur, start); err != nil {
		return fmt.Errorf("syncing books: %w", err)
	}
	if err := s.syncConfigs(ctx, cur, start); err != nil {
		return fmt.Errorf("syncing configs: %w", err)
	}
	if err := s.syncNotes(ctx, cur, start); err != nil {
		return fmt.Errorf("syncing notes: %w", err)
	}

	s.logger.Info("sync round complete", "cursor", start)
	return nil
}

func (s *LibraryService) syncBooks(ctx context.Context, cur *model.SyncCursors, start int64) error {
	s.mu.Lock()
	var changed []model.Book
	for _, b := range s.catalog.All() {
		if recency(b.UpdatedAt, b.DeletedAt) > cur.Books {
			changed = append(changed, *b)
		}
	}
	s.mu.Unlock()

	if len(changed) > 0 {
		if err := s.remote.PushBooks(ctx, changed); err != nil {
			return fmt.Errorf("push: %w", err)
		}
	}

	pulled, err := s.remote.PullBooks(ctx, cur.Books)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	s.mu.Lock()
	MergeBooks(s.catalog, pulled, s.store)
	err = SaveCatalog(s.store, s.catalog)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	cur.Books = start
	return s.saveCursors(cur)
}

// catalogHashes lists every catalog entry, tombstoned books included:
// a config edit or note tombstone landing just before the book's own
// deletion must still go out.
func (s *LibraryService) catalogHashes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hashes []string
	for _, b := range s.catalog.All() {
		hashes = append(hashes, b.Hash)
	}
	return hashes
}

func (s *LibraryService) syncConfigs(ctx context.Context, cur *model.SyncCursors, start int64) error {
	var changed []model.BookConfig
	for _, hash := range s.catalogHashes() {
		cfg, err := s.LoadConfig(hash)
		if err != nil {
			return err
		}
		if cfg != nil && cfg.UpdatedAt > cur.Configs {
			// Notes travel as their own collection.
			c := *cfg
			c.Notes = nil
			changed = append(changed, c)
		}
	}

	if len(changed) > 0 {
		if err := s.remote.PushConfigs(ctx, changed); err != nil {
			return fmt.Errorf("push: %w", err)
		}
	}

	pulled, err := s.remote.PullConfigs(ctx, cur.Configs)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	for i := range pulled {
		in := pulled[i]
		local, err := s.LoadConfig(in.BookHash)
		if err != nil {
			return err
		}
		merged := MergeConfig(local, &in)
		if merged == local {
			continue
		}
		if err := s.SaveConfig(merged); err != nil {
			return err
		}
	}

	cur.Configs = start
	return s.saveCursors(cur)
}

func (s *LibraryService) syncNotes(ctx context.Context, cur *model.SyncCursors, start int64) error {
	var changed []model.BookNote
	for _, hash := range s.catalogHashes() {
		cfg, err := s.LoadConfig(hash)
		if err != nil {
			return err
		}
		if cfg == nil {
			continue
		}
		for _, n := range cfg.Notes {
			if recency(n.UpdatedAt, n.DeletedAt) > cur.Notes {
				changed = append(changed, n)
			}
		}
	}

	if len(changed) > 0 {
		if err := s.remote.PushNotes(ctx, changed); err != nil {
			return fmt.Errorf("push: %w", err)
		}
	}

	pulled, err := s.remote.PullNotes(ctx, cur.Notes)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	byBook := make(map[string][]model.BookNote)
	for _, n := range pulled {
		byBook[n.BookHash] = append(byBook[n.BookHash], n)
	}

	for hash, notes := range byBook {
		cfg, err := s.LoadConfig(hash)
		if err != nil {
			return err
		}
		if cfg == nil {
			// Notes can land before the user ever opened the book here.
			cfg = &model.BookConfig{
				BookHash:    hash,
				FontScale:   s.defaults.FontScale,
				Theme:       s.defaults.Theme,
				SearchScope: s.defaults.SearchScope,
				CaseMatch:   s.defaults.CaseMatch,
			}
		}
		cfg.Notes = MergeNotes(cfg.Notes, notes)
		if err := s.SaveConfig(cfg); err != nil {
			return err
		}
	}

	cur.Notes = start
	return s.saveCursors(cur)
}

// Syncer drives SyncRound on a debounced schedule. A trigger arriving
// within the interval window of the last round arms one deferred round at
// the window boundary, coalescing bursts of local edits into a single
// round trip. Rounds are serialized; overlapping invocations wait rather
// than interleave.
type Syncer struct {
	svc      *LibraryService
	interval time.Duration
	clock    Clock
	logger   Logger

	runMu sync.Mutex // serializes rounds

	mu        sync.Mutex
	lastRound time.Time
	timer     *time.Timer
}

func NewSyncer(svc *LibraryService, interval time.Duration, clock Clock, logger Logger) *Syncer {
	return &Syncer{svc: svc, interval: interval, clock: clock, logger: logger}
}

// Trigger requests a sync. Outside the debounce window it runs
// immediately (in the calling goroutine); inside it, one deferred round
// is scheduled at the window boundary and further triggers coalesce into
// it.
func (s *Syncer) Trigger(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.mu.Unlock()
		return
	}
	elapsed := s.clock.Now().Sub(s.lastRound)
	if elapsed >= s.interval {
		s.mu.Unlock()
		if err := s.SyncNow(ctx); err != nil {
			s.logger.Warn("sync failed", "error", err)
		}
		return
	}
	delay := s.interval - elapsed
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		if err := s.SyncNow(context.Background()); err != nil {
			s.logger.Warn("deferred sync failed", "error", err)
		}
	})
	s.mu.Unlock()
}

// SyncNow runs one round immediately, bypassing the debounce window.
// Used for explicit user syncs and app-foreground triggers.
func (s *Syncer) SyncNow(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	err := s.svc.SyncRound(ctx)

	s.mu.Lock()
	s.lastRound = s.clock.Now()
	s.mu.Unlock()
	return err
}
