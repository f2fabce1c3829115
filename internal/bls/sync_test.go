package bls_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bls-go/internal/bls"
	"bls-go/internal/model"
	"bls-go/internal/remote"
	"bls-go/internal/testutil"
)

func importBook(t *testing.T, env *testutil.Env, title string) *model.Book {
	t.Helper()
	data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: title})
	book, err := env.Service.Import(title+".epub", data, "", bls.DefaultImportOptions())
	if err != nil {
		t.Fatalf("importing %s: %v", title, err)
	}
	return book
}

func addNote(t *testing.T, env *testutil.Env, hash, id, text string) {
	t.Helper()
	cfg, err := env.Service.LoadConfig(hash)
	if err != nil {
		t.Fatal(err)
	}
	now := env.Clock.Now().UnixMilli()
	cfg.Notes = append(cfg.Notes, model.BookNote{
		ID: id, BookHash: hash, Type: model.NoteHighlight,
		Location: "p1", Text: &text, CreatedAt: now, UpdatedAt: now,
	})
	cfg.UpdatedAt = now
	if err := env.Service.SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}
}

func TestSyncRound(t *testing.T) {
	ctx := context.Background()

	t.Run("propagates catalog, config and notes between devices", func(t *testing.T) {
		rem := remote.NewMemoryRemote(0)
		dev1 := testutil.NewEnvWithRemote(t, rem)
		dev2 := testutil.NewEnvWithRemote(t, rem)

		book := importBook(t, dev1, "Dune")
		addNote(t, dev1, book.Hash, "n1", "a passage")

		cfg, err := dev1.Service.LoadConfig(book.Hash)
		if err != nil {
			t.Fatal(err)
		}
		cfg.Location = "ch4"
		cfg.UpdatedAt = dev1.Clock.Now().UnixMilli()
		if err := dev1.Service.SaveConfig(cfg); err != nil {
			t.Fatal(err)
		}

		if err := dev1.Service.SyncRound(ctx); err != nil {
			t.Fatalf("device 1 SyncRound() error = %v", err)
		}
		if err := dev2.Service.SyncRound(ctx); err != nil {
			t.Fatalf("device 2 SyncRound() error = %v", err)
		}

		got := dev2.Service.Book(book.Hash)
		if got == nil {
			t.Fatal("book did not propagate")
		}
		if got.Title != "Dune" {
			t.Errorf("Title = %q, want Dune", got.Title)
		}
		if got.DownloadedAt != nil {
			t.Error("propagated record claims local presence on device 2")
		}

		cfg2, err := dev2.Service.LoadConfig(book.Hash)
		if err != nil {
			t.Fatal(err)
		}
		if cfg2 == nil {
			t.Fatal("config did not propagate")
		}
		if cfg2.Location != "ch4" {
			t.Errorf("Location = %q, want ch4", cfg2.Location)
		}
		if len(cfg2.Notes) != 1 || cfg2.Notes[0].ID != "n1" {
			t.Errorf("notes did not propagate: %+v", cfg2.Notes)
		}
	})

	t.Run("deletions propagate as tombstones", func(t *testing.T) {
		rem := remote.NewMemoryRemote(0)
		dev1 := testutil.NewEnvWithRemote(t, rem)
		dev2 := testutil.NewEnvWithRemote(t, rem)

		book := importBook(t, dev1, "Dune")
		if err := dev1.Service.SyncRound(ctx); err != nil {
			t.Fatal(err)
		}
		if err := dev2.Service.SyncRound(ctx); err != nil {
			t.Fatal(err)
		}
		if len(dev2.Service.Books()) != 1 {
			t.Fatal("book did not propagate before delete")
		}

		dev1.Clock.Advance(time.Minute)
		dev2.Clock.Advance(time.Minute)
		if err := dev1.Service.Delete(book.Hash); err != nil {
			t.Fatal(err)
		}
		if err := dev1.Service.SyncRound(ctx); err != nil {
			t.Fatal(err)
		}
		if err := dev2.Service.SyncRound(ctx); err != nil {
			t.Fatal(err)
		}

		if got := len(dev2.Service.Books()); got != 0 {
			t.Errorf("Books() on device 2 = %d, want 0 after tombstone sync", got)
		}
		if dev2.Service.Book(book.Hash) == nil {
			t.Error("tombstone record dropped instead of retained")
		}
	})

	t.Run("a tombstoned book still pushes its config and note tombstones", func(t *testing.T) {
		rem := remote.NewMemoryRemote(0)
		dev := testutil.NewEnvWithRemote(t, rem)

		book := importBook(t, dev, "Dune")
		addNote(t, dev, book.Hash, "n1", "a passage")
		if err := dev.Service.SyncRound(ctx); err != nil {
			t.Fatal(err)
		}

		// Tombstone the note and move the reading position, then delete
		// the book before the next round.
		dev.Clock.Advance(time.Minute)
		cfg, err := dev.Service.LoadConfig(book.Hash)
		if err != nil {
			t.Fatal(err)
		}
		now := dev.Clock.Now().UnixMilli()
		cfg.Notes[0].DeletedAt = &now
		cfg.Location = "ch9"
		cfg.UpdatedAt = now
		if err := dev.Service.SaveConfig(cfg); err != nil {
			t.Fatal(err)
		}
		if err := dev.Service.Delete(book.Hash); err != nil {
			t.Fatal(err)
		}

		if err := dev.Service.SyncRound(ctx); err != nil {
			t.Fatalf("SyncRound() error = %v", err)
		}

		notes, err := rem.PullNotes(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(notes) != 1 {
			t.Fatalf("len(notes) on remote = %d, want 1", len(notes))
		}
		if notes[0].DeletedAt == nil {
			t.Errorf("note tombstone not pushed: %+v", notes[0])
		}

		configs, err := rem.PullConfigs(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(configs) != 1 || configs[0].Location != "ch9" {
			t.Errorf("config of deleted book not pushed: %+v", configs)
		}
	})

	t.Run("a failed collection keeps its cursor", func(t *testing.T) {
		rem := remote.NewMemoryRemote(0)
		dev := testutil.NewEnvWithRemote(t, rem)

		book := importBook(t, dev, "Dune")
		addNote(t, dev, book.Hash, "n1", "a passage")

		rem.Errs = map[string]error{"PullNotes": fmt.Errorf("backend hiccup")}
		if err := dev.Service.SyncRound(ctx); err == nil {
			t.Fatal("SyncRound() succeeded despite pull failure")
		}

		cur, err := dev.Service.LoadCursors()
		if err != nil {
			t.Fatal(err)
		}
		start := dev.Clock.Now().UnixMilli()
		if cur.Books != start || cur.Configs != start {
			t.Errorf("completed collections did not advance: %+v", cur)
		}
		if cur.Notes != 0 {
			t.Errorf("Notes cursor = %d, want 0 after failure", cur.Notes)
		}

		// The next round retries the same note set.
		rem.Errs = nil
		if err := dev.Service.SyncRound(ctx); err != nil {
			t.Fatalf("retry SyncRound() error = %v", err)
		}

		pulled, err := rem.PullNotes(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(pulled) != 1 || pulled[0].ID != "n1" {
			t.Errorf("note not pushed on retry: %+v", pulled)
		}

		cur, err = dev.Service.LoadCursors()
		if err != nil {
			t.Fatal(err)
		}
		if cur.Notes == 0 {
			t.Error("Notes cursor did not advance after successful retry")
		}
	})

	t.Run("concurrent edits converge by timestamp", func(t *testing.T) {
		rem := remote.NewMemoryRemote(0)
		dev1 := testutil.NewEnvWithRemote(t, rem)
		dev2 := testutil.NewEnvWithRemote(t, rem)

		book := importBook(t, dev1, "Dune")
		if err := dev1.Service.SyncRound(ctx); err != nil {
			t.Fatal(err)
		}
		if err := dev2.Service.SyncRound(ctx); err != nil {
			t.Fatal(err)
		}

		// Device 2 reads further, later in wall-clock time.
		setLocation := func(env *testutil.Env, loc string) {
			cfg, err := env.Service.LoadConfig(book.Hash)
			if err != nil {
				t.Fatal(err)
			}
			if cfg == nil {
				cfg = &model.BookConfig{BookHash: book.Hash}
			}
			cfg.Location = loc
			cfg.UpdatedAt = env.Clock.Now().UnixMilli()
			if err := env.Service.SaveConfig(cfg); err != nil {
				t.Fatal(err)
			}
		}
		dev1.Clock.Advance(time.Minute)
		setLocation(dev1, "ch2")
		dev2.Clock.Advance(2 * time.Minute)
		setLocation(dev2, "ch5")

		for _, env := range []*testutil.Env{dev1, dev2, dev1} {
			if err := env.Service.SyncRound(ctx); err != nil {
				t.Fatal(err)
			}
		}

		for i, env := range []*testutil.Env{dev1, dev2} {
			cfg, err := env.Service.LoadConfig(book.Hash)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Location != "ch5" {
				t.Errorf("device %d Location = %q, want ch5 (latest edit)", i+1, cfg.Location)
			}
		}
	})
}

func TestSyncer(t *testing.T) {
	t.Run("trigger outside the window runs inline", func(t *testing.T) {
		rem := remote.NewMemoryRemote(0)
		env := testutil.NewEnvWithRemote(t, rem)
		importBook(t, env, "Dune")

		syncer := bls.NewSyncer(env.Service, time.Hour, env.Clock, bls.NewNopLogger())
		syncer.Trigger(context.Background())

		cur, err := env.Service.LoadCursors()
		if err != nil {
			t.Fatal(err)
		}
		if cur.Books == 0 {
			t.Error("first trigger did not run a round")
		}
	})

	t.Run("triggers inside the window are deferred", func(t *testing.T) {
		rem := remote.NewMemoryRemote(0)
		env := testutil.NewEnvWithRemote(t, rem)
		importBook(t, env, "Dune")

		syncer := bls.NewSyncer(env.Service, time.Hour, env.Clock, bls.NewNopLogger())
		syncer.Trigger(context.Background())

		// Make the next round observable through a cursor change.
		env.Clock.Advance(time.Minute)

		before, err := env.Service.LoadCursors()
		if err != nil {
			t.Fatal(err)
		}
		syncer.Trigger(context.Background())
		syncer.Trigger(context.Background())
		after, err := env.Service.LoadCursors()
		if err != nil {
			t.Fatal(err)
		}
		if after.Books != before.Books {
			t.Error("triggers inside the debounce window ran immediately")
		}
	})

	t.Run("SyncNow bypasses the window", func(t *testing.T) {
		rem := remote.NewMemoryRemote(0)
		env := testutil.NewEnvWithRemote(t, rem)
		importBook(t, env, "Dune")

		syncer := bls.NewSyncer(env.Service, time.Hour, env.Clock, bls.NewNopLogger())
		syncer.Trigger(context.Background())

		env.Clock.Advance(time.Minute)
		if err := syncer.SyncNow(context.Background()); err != nil {
			t.Fatalf("SyncNow() error = %v", err)
		}

		cur, err := env.Service.LoadCursors()
		if err != nil {
			t.Fatal(err)
		}
		if cur.Books != env.Clock.Now().UnixMilli() {
			t.Error("SyncNow did not run a round inside the window")
		}
	})
}
