package bls_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bls-go/internal/bls"
	"bls-go/internal/testutil"
)

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("moves cover and book file to the remote", func(t *testing.T) {
		env := testutil.NewEnv(t)
		data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: "Dune", Cover: true})
		book, err := env.Service.Import("dune.epub", data, "", bls.DefaultImportOptions())
		if err != nil {
			t.Fatal(err)
		}

		if err := env.Service.Upload(ctx, book.Hash, nil); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}

		for _, key := range []string{bls.CoverPath(book.Hash), bls.BookPath(book)} {
			wantSize, err := env.Store.FileSize(bls.DirBooks, key)
			if err != nil {
				t.Fatal(err)
			}
			gotSize, ok := env.Remote.ObjectSize(key)
			if !ok {
				t.Fatalf("remote missing object %s", key)
			}
			if gotSize != wantSize {
				t.Errorf("object %s size = %d, want %d", key, gotSize, wantSize)
			}
		}

		uploaded := env.Service.Book(book.Hash)
		if uploaded.UploadedAt == nil {
			t.Error("UploadedAt not set after full upload")
		}
	})

	t.Run("progress is monotonic and ends at 100", func(t *testing.T) {
		env := testutil.NewEnv(t)
		data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: "Dune", Chapters: 4, Cover: true})
		book, err := env.Service.Import("dune.epub", data, "", bls.DefaultImportOptions())
		if err != nil {
			t.Fatal(err)
		}

		var pcts []int
		if err := env.Service.Upload(ctx, book.Hash, func(pct int) { pcts = append(pcts, pct) }); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}

		if len(pcts) == 0 {
			t.Fatal("no progress reported")
		}
		for i := 1; i < len(pcts); i++ {
			if pcts[i] < pcts[i-1] {
				t.Fatalf("progress went backwards: %v", pcts)
			}
		}
		for _, p := range pcts {
			if p < 0 || p > 100 {
				t.Fatalf("progress out of range: %v", pcts)
			}
		}
		if pcts[len(pcts)-1] != 100 {
			t.Errorf("final progress = %d, want 100", pcts[len(pcts)-1])
		}
	})

	t.Run("retry skips files already uploaded", func(t *testing.T) {
		env := testutil.NewEnv(t)
		data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: "Dune", Cover: true})
		book, err := env.Service.Import("dune.epub", data, "", bls.DefaultImportOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := env.Service.Upload(ctx, book.Hash, nil); err != nil {
			t.Fatal(err)
		}

		// With everything already remote, no new ticket should be needed.
		env.Remote.Errs = map[string]error{"IssueUpload": fmt.Errorf("should not be called")}

		var last int
		if err := env.Service.Upload(ctx, book.Hash, func(pct int) { last = pct }); err != nil {
			t.Fatalf("retry Upload() error = %v", err)
		}
		if last != 100 {
			t.Errorf("retry final progress = %d, want 100", last)
		}
	})

	t.Run("quota exhaustion surfaces as QuotaExceededError", func(t *testing.T) {
		env := testutil.NewEnvQuota(t, 1000)
		env.Remote.Usage = 995

		data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: "Dune"})
		book, err := env.Service.Import("dune.epub", data, "", bls.DefaultImportOptions())
		if err != nil {
			t.Fatal(err)
		}

		err = env.Service.Upload(ctx, book.Hash, nil)
		var quotaErr *bls.QuotaExceededError
		if !errors.As(err, &quotaErr) {
			t.Fatalf("error = %v, want *QuotaExceededError", err)
		}
		var upErr *bls.UploadError
		if !errors.As(err, &upErr) {
			t.Fatalf("error = %v, want wrapped in *UploadError", err)
		}
		if quotaErr.Usage != 995 || quotaErr.Quota != 1000 {
			t.Errorf("quota numbers = %d/%d, want 995/1000", quotaErr.Usage, quotaErr.Quota)
		}
	})

	t.Run("nothing to move is an UploadError", func(t *testing.T) {
		env := testutil.NewEnv(t)
		data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: "Dune"})
		book, err := env.Service.Import("dune.epub", data, "", bls.DefaultImportOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := env.Store.RemoveFile(bls.DirBooks, bls.BookPath(book)); err != nil {
			t.Fatal(err)
		}

		err = env.Service.Upload(ctx, book.Hash, nil)
		var upErr *bls.UploadError
		if !errors.As(err, &upErr) {
			t.Fatalf("error = %v, want *UploadError", err)
		}
	})

	t.Run("unknown hash is an UploadError", func(t *testing.T) {
		env := testutil.NewEnv(t)
		var upErr *bls.UploadError
		if err := env.Service.Upload(ctx, "nope", nil); !errors.As(err, &upErr) {
			t.Fatalf("error = %v, want *UploadError", err)
		}
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("restores a previously uploaded book file", func(t *testing.T) {
		env := testutil.NewEnv(t)
		data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: "Dune", Cover: true})
		book, err := env.Service.Import("dune.epub", data, "", bls.DefaultImportOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := env.Service.Upload(ctx, book.Hash, nil); err != nil {
			t.Fatal(err)
		}

		// Simulate freeing local space after upload.
		bookPath := bls.BookPath(book)
		if err := env.Store.RemoveFile(bls.DirBooks, bookPath); err != nil {
			t.Fatal(err)
		}

		var last int
		if err := env.Service.Download(ctx, book.Hash, false, func(pct int) { last = pct }); err != nil {
			t.Fatalf("Download() error = %v", err)
		}

		if ok, _ := env.Store.Exists(bls.DirBooks, bookPath); !ok {
			t.Error("book file not restored locally")
		}
		if env.Service.Book(book.Hash).DownloadedAt == nil {
			t.Error("DownloadedAt not set after download")
		}
		if last != 100 {
			t.Errorf("final progress = %d, want 100", last)
		}
	})

	t.Run("cover-only leaves the book file remote", func(t *testing.T) {
		env := testutil.NewEnv(t)
		data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: "Dune", Cover: true})
		book, err := env.Service.Import("dune.epub", data, "", bls.DefaultImportOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := env.Service.Upload(ctx, book.Hash, nil); err != nil {
			t.Fatal(err)
		}

		bookPath := bls.BookPath(book)
		if err := env.Store.RemoveFile(bls.DirBooks, bookPath); err != nil {
			t.Fatal(err)
		}
		if err := env.Store.RemoveFile(bls.DirBooks, bls.CoverPath(book.Hash)); err != nil {
			t.Fatal(err)
		}

		if err := env.Service.Download(ctx, book.Hash, true, nil); err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if ok, _ := env.Store.Exists(bls.DirBooks, bls.CoverPath(book.Hash)); !ok {
			t.Error("cover not downloaded")
		}
		if ok, _ := env.Store.Exists(bls.DirBooks, bookPath); ok {
			t.Error("cover-only download fetched the book file")
		}
	})

	t.Run("book absent everywhere is a FileNotFoundError", func(t *testing.T) {
		env := testutil.NewEnv(t)
		data := testutil.NewEPUB(t, testutil.EPUBOptions{Title: "Dune"})
		book, err := env.Service.Import("dune.epub", data, "", bls.DefaultImportOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := env.Store.RemoveFile(bls.DirBooks, bls.BookPath(book)); err != nil {
			t.Fatal(err)
		}

		err = env.Service.Download(ctx, book.Hash, false, nil)
		var dlErr *bls.DownloadError
		if !errors.As(err, &dlErr) {
			t.Fatalf("error = %v, want *DownloadError", err)
		}
		var nfErr *bls.FileNotFoundError
		if !errors.As(err, &nfErr) {
			t.Fatalf("error = %v, want wrapped *FileNotFoundError", err)
		}
	})
}
