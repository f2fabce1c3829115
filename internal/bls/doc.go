package bls

import "bls-go/internal/model"

// The document engine is an external collaborator: the core only needs
// format detection, display metadata, a chapter count, an optional cover,
// and the packaged byte stream for plain-text conversions. Parsing beyond
// that is out of scope.

// Document is what the loader extracts from an input file.
type Document struct {
	Format   model.BookFormat
	Title    string
	Author   string
	Chapters int
	// Cover is the extracted cover image (PNG), or nil.
	Cover []byte
	// Packaged is non-nil for plain-text inputs: the converted
	// packaged-book byte stream that is stored in place of the raw text.
	Packaged []byte
}

// DocumentLoader opens an input as a document. name is the original file
// name and is used for format hints and fallback metadata. A loader
// returns an error when the input cannot be parsed or the format is
// unsupported; the importer wraps it into an ImportError.
type DocumentLoader interface {
	Load(name string, data []byte) (*Document, error)
}
