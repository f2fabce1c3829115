package model

// Timestamps are epoch milliseconds of device-local wall-clock time.
// Nullable timestamps are pointers; nil means "never happened".

// BookFormat identifies the packaged format of a book file.
type BookFormat string

const (
	FormatEPUB BookFormat = "epub"
	FormatPDF  BookFormat = "pdf"
	FormatMOBI BookFormat = "mobi"
	// FormatTXT marks books imported as plain text and converted into a
	// packaged book before storage.
	FormatTXT BookFormat = "txt"
)

// Book is one library catalog entry.
// Hash is the content fingerprint and is immutable once created: it is a
// deterministic function of the file bytes, so two imports of identical
// content always map to the same entry.
type Book struct {
	Hash         string     `json:"hash"`
	Format       BookFormat `json:"format"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
	FileName     string     `json:"file_name"`
	Size         int64      `json:"size"`
	CreatedAt    int64      `json:"created_at"`
	UpdatedAt    int64      `json:"updated_at"`
	DownloadedAt *int64     `json:"downloaded_at"`
	UploadedAt   *int64     `json:"uploaded_at"`
	DeletedAt    *int64     `json:"deleted_at"`
	// URL is an optional origin pointer for books never copied into local
	// storage (a remote source or a transiently opened path).
	URL string `json:"url,omitempty"`
	// CoverPath is re-derived from the content store on load and never
	// persisted in library.json.
	CoverPath string `json:"-"`
}

// Deleted reports whether the entry carries a tombstone.
func (b *Book) Deleted() bool { return b.DeletedAt != nil }

// NoteType distinguishes the kinds of annotations a reader can attach.
type NoteType string

const (
	NoteHighlight NoteType = "highlight"
	NoteBookmark  NoteType = "bookmark"
)

// BookNote is one annotation belonging to a book. ID is unique within the
// owning book and stable across devices; BookHash is a back-reference
// only. Optional fields are pointers so a record that never set them can
// inherit values during merge instead of blanking them.
type BookNote struct {
	ID        string   `json:"id"`
	BookHash  string   `json:"book_hash"`
	Type      NoteType `json:"type"`
	Location  string   `json:"location"`
	Text      *string  `json:"text,omitempty"`
	Comment   *string  `json:"comment,omitempty"`
	Color     *string  `json:"color,omitempty"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
	DeletedAt *int64   `json:"deleted_at"`
}

// Deleted reports whether the note carries a tombstone.
func (n *BookNote) Deleted() bool { return n.DeletedAt != nil }

// BookConfig is the per-book reading state, one per Book.Hash.
// Notes are stored alongside the config on disk but are synced as their
// own collection with per-note merge.
type BookConfig struct {
	BookHash    string     `json:"book_hash"`
	Location    string     `json:"location"`
	Percent     float64    `json:"percent"`
	FontScale   float64    `json:"font_scale"`
	Theme       string     `json:"theme"`
	SearchScope string     `json:"search_scope"`
	CaseMatch   bool       `json:"case_match"`
	UpdatedAt   int64      `json:"updated_at"`
	Notes       []BookNote `json:"notes"`
}

// SyncCursors is the per-device high-water mark of records already
// exchanged with the remote, one cursor per collection. A cursor advances
// only after a full push+pull round for its collection succeeds.
type SyncCursors struct {
	DeviceID string `json:"device_id"`
	Books    int64  `json:"books"`
	Configs  int64  `json:"configs"`
	Notes    int64  `json:"notes"`
}

// Operation is one row of the local operation log: a single import,
// upload, download or sync round, recorded for `bls log`.
type Operation struct {
	ID        string
	Kind      string // "Import", "Upload", "Download", "Sync"
	Detail    string // book hash or collection summary
	Status    string // "ok" or "failed"
	Error     string
	StartedAt int64
	EndedAt   int64
}
