package bls

import "bls-go/internal/model"

// Merge rules. Catalog entries and configs are last-writer-wins at record
// granularity; a tombstone is a winning value like any other. Notes get a
// finer object-overlay merge so an older record's optional fields survive
// when the newer record never set them.
//
// All comparisons use the record's recency: the larger of updatedAt and
// deletedAt. Device clocks are untrusted, so ties are broken
// deterministically (tombstone wins, then local/first argument) to keep
// merges order-independent.

func recency(updatedAt int64, deletedAt *int64) int64 {
	if deletedAt != nil && *deletedAt > updatedAt {
		return *deletedAt
	}
	return updatedAt
}

// incomingWinsBook reports whether the incoming record replaces the local
// one.
func incomingWinsBook(local, incoming *model.Book) bool {
	li, ri := recency(local.UpdatedAt, local.DeletedAt), recency(incoming.UpdatedAt, incoming.DeletedAt)
	if ri != li {
		return ri > li
	}
	// Equal clocks: prefer the tombstone so deletions propagate.
	return incoming.DeletedAt != nil && local.DeletedAt == nil
}

// MergeBooks folds incoming catalog records into the catalog,
// last-writer-wins per hash. New hashes are appended. The incoming
// record's local-only fields are not trusted: presence timestamps for
// this device are re-derived from the store by the caller.
func MergeBooks(c *Catalog, incoming []model.Book, store ContentStore) {
	for i := range incoming {
		in := incoming[i]
		local := c.Get(in.Hash)
		if local == nil {
			b := in
			// A record arriving from another device says nothing about
			// what is on this device's disk.
			b.DownloadedAt = nil
			if ok, _ := store.Exists(DirBooks, BookPath(&b)); ok {
				now := b.UpdatedAt
				b.DownloadedAt = &now
			}
			c.Put(&b)
			continue
		}
		if !incomingWinsBook(local, &in) {
			continue
		}
		downloadedAt := local.DownloadedAt
		coverPath := local.CoverPath
		*local = in
		local.DownloadedAt = downloadedAt
		local.CoverPath = coverPath
	}
}

func incomingWinsConfig(local, incoming *model.BookConfig) bool {
	return incoming.UpdatedAt > local.UpdatedAt
}

// MergeConfig resolves one config record pair, last-writer-wins. Notes
// are carried from the local config regardless of the winner: they are a
// separate collection with their own merge.
func MergeConfig(local, incoming *model.BookConfig) *model.BookConfig {
	if local == nil {
		out := *incoming
		out.Notes = nil
		return &out
	}
	if !incomingWinsConfig(local, incoming) {
		return local
	}
	out := *incoming
	out.Notes = local.Notes
	return &out
}

// incomingWinsNote decides the winner for one note id.
func incomingWinsNote(local, incoming *model.BookNote) bool {
	li, ri := recency(local.UpdatedAt, local.DeletedAt), recency(incoming.UpdatedAt, incoming.DeletedAt)
	if ri != li {
		return ri > li
	}
	return incoming.DeletedAt != nil && local.DeletedAt == nil
}

// overlayNote merges loser fields under winner fields: winner values
// override, but any field the winner never set falls back to the loser.
func overlayNote(winner, loser model.BookNote) model.BookNote {
	out := winner
	if out.Text == nil {
		out.Text = loser.Text
	}
	if out.Comment == nil {
		out.Comment = loser.Comment
	}
	if out.Color == nil {
		out.Color = loser.Color
	}
	if out.Location == "" {
		out.Location = loser.Location
	}
	if out.Type == "" {
		out.Type = loser.Type
	}
	if out.CreatedAt == 0 {
		out.CreatedAt = loser.CreatedAt
	}
	return out
}

// MergeNotes merges an incoming note set into a local one. Per id, the
// record with the larger recency wins and the loser's unset fields are
// overlaid. New incoming notes are added; local notes absent remotely are
// kept. The result is independent of merge direction when compared by
// (id, updatedAt, deletedAt).
func MergeNotes(local, incoming []model.BookNote) []model.BookNote {
	byID := make(map[string]int, len(local))
	out := make([]model.BookNote, len(local))
	copy(out, local)
	for i := range out {
		byID[out[i].ID] = i
	}

	for _, in := range incoming {
		i, ok := byID[in.ID]
		if !ok {
			byID[in.ID] = len(out)
			out = append(out, in)
			continue
		}
		if incomingWinsNote(&out[i], &in) {
			out[i] = overlayNote(in, out[i])
		} else {
			out[i] = overlayNote(out[i], in)
		}
	}
	return out
}
