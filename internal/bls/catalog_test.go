package bls_test

import (
	"testing"

	"bls-go/internal/bls"
	"bls-go/internal/model"
	"bls-go/internal/store"
)

func TestLoadCatalog(t *testing.T) {
	t.Run("missing file yields empty catalog", func(t *testing.T) {
		st := store.NewMemoryStore()
		c, err := bls.LoadCatalog(st, bls.NewNopLogger())
		if err != nil {
			t.Fatalf("LoadCatalog() error = %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0", c.Len())
		}
	})

	t.Run("unparsable file yields empty catalog", func(t *testing.T) {
		st := store.NewMemoryStore()
		if err := st.WriteFile(bls.DirBooks, "library.json", []byte("not json")); err != nil {
			t.Fatal(err)
		}
		c, err := bls.LoadCatalog(st, bls.NewNopLogger())
		if err != nil {
			t.Fatalf("LoadCatalog() error = %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0", c.Len())
		}
	})

	t.Run("roundtrip preserves insertion order", func(t *testing.T) {
		st := store.NewMemoryStore()
		c := bls.NewCatalog()
		c.Put(&model.Book{Hash: "h1", Title: "First"})
		c.Put(&model.Book{Hash: "h2", Title: "Second"})
		c.Put(&model.Book{Hash: "h3", Title: "Third"})
		if err := bls.SaveCatalog(st, c); err != nil {
			t.Fatalf("SaveCatalog() error = %v", err)
		}

		loaded, err := bls.LoadCatalog(st, bls.NewNopLogger())
		if err != nil {
			t.Fatalf("LoadCatalog() error = %v", err)
		}
		want := []string{"h1", "h2", "h3"}
		all := loaded.All()
		if len(all) != len(want) {
			t.Fatalf("len = %d, want %d", len(all), len(want))
		}
		for i, b := range all {
			if b.Hash != want[i] {
				t.Errorf("All()[%d].Hash = %q, want %q", i, b.Hash, want[i])
			}
		}
	})

	t.Run("re-derives cover presence from the store", func(t *testing.T) {
		st := store.NewMemoryStore()
		c := bls.NewCatalog()
		c.Put(&model.Book{Hash: "h1"})
		c.Put(&model.Book{Hash: "h2"})
		if err := bls.SaveCatalog(st, c); err != nil {
			t.Fatal(err)
		}
		if err := st.WriteFile(bls.DirBooks, bls.CoverPath("h1"), []byte("png")); err != nil {
			t.Fatal(err)
		}

		loaded, err := bls.LoadCatalog(st, bls.NewNopLogger())
		if err != nil {
			t.Fatalf("LoadCatalog() error = %v", err)
		}
		if got := loaded.Get("h1").CoverPath; got != bls.CoverPath("h1") {
			t.Errorf("h1 CoverPath = %q, want %q", got, bls.CoverPath("h1"))
		}
		if got := loaded.Get("h2").CoverPath; got != "" {
			t.Errorf("h2 CoverPath = %q, want empty", got)
		}
	})
}

func TestCatalog_Active(t *testing.T) {
	c := bls.NewCatalog()
	deleted := int64(100)
	c.Put(&model.Book{Hash: "visible"})
	c.Put(&model.Book{Hash: "tombstoned", DeletedAt: &deleted})

	active := c.Active()
	if len(active) != 1 || active[0].Hash != "visible" {
		t.Errorf("Active() = %v, want only the visible entry", active)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (tombstones retained)", c.Len())
	}
}
