package bls

import (
	"encoding/json"
	"fmt"

	"bls-go/internal/model"
)

// catalogFile is the persisted catalog: a JSON array of Book records
// (tombstoned entries included) under the Books base directory.
const catalogFile = "library.json"

// Catalog is the device's list of Book records, indexed by hash with
// insertion order preserved for the default listing sort. Tombstoned
// entries stay in the catalog so deletions can propagate to other
// devices; they are only hidden from Active.
//
// Catalog is not safe for concurrent use; callers serialize mutations
// (the service holds one catalog behind its lock).
type Catalog struct {
	order  []string
	byHash map[string]*model.Book
}

func NewCatalog() *Catalog {
	return &Catalog{byHash: make(map[string]*model.Book)}
}

// Get returns the entry for hash, or nil.
func (c *Catalog) Get(hash string) *model.Book {
	return c.byHash[hash]
}

// Put inserts a new entry or replaces an existing one in place. A new
// hash is appended to the insertion order.
func (c *Catalog) Put(b *model.Book) {
	if _, ok := c.byHash[b.Hash]; !ok {
		c.order = append(c.order, b.Hash)
	}
	c.byHash[b.Hash] = b
}

// All returns every entry, tombstoned ones included, in insertion order.
func (c *Catalog) All() []*model.Book {
	out := make([]*model.Book, 0, len(c.order))
	for _, h := range c.order {
		out = append(out, c.byHash[h])
	}
	return out
}

// Active returns the user-visible entries: everything without a
// tombstone, in insertion order.
func (c *Catalog) Active() []*model.Book {
	out := make([]*model.Book, 0, len(c.order))
	for _, h := range c.order {
		if b := c.byHash[h]; !b.Deleted() {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the total number of entries, tombstoned ones included.
func (c *Catalog) Len() int { return len(c.order) }

// LoadCatalog reads library.json from the store. A missing or unparsable
// file yields an empty catalog; it is recreated on the next save.
func LoadCatalog(store ContentStore, logger Logger) (*Catalog, error) {
	c := NewCatalog()

	ok, err := store.Exists(DirBooks, catalogFile)
	if err != nil {
		return nil, fmt.Errorf("checking for catalog: %w", err)
	}
	if !ok {
		return c, nil
	}

	data, err := store.ReadFile(DirBooks, catalogFile)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var books []*model.Book
	if err := json.Unmarshal(data, &books); err != nil {
		logger.Warn("catalog file unparsable, starting empty", "error", err)
		return c, nil
	}

	for _, b := range books {
		c.Put(b)
		if ok, _ := store.Exists(DirBooks, CoverPath(b.Hash)); ok {
			b.CoverPath = CoverPath(b.Hash)
		}
	}
	return c, nil
}

// SaveCatalog persists the whole catalog as one JSON document. The write
// is atomic, so readers never see a torn catalog.
func SaveCatalog(store ContentStore, c *Catalog) error {
	data, err := json.MarshalIndent(c.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}
	if err := store.WriteFile(DirBooks, catalogFile, data); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	return nil
}
