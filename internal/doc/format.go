package doc

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"bls-go/internal/model"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	pdfMagic  = []byte("%PDF")
	mobiMagic = []byte("BOOKMOBI")
)

// DetectFormat sniffs the book format from content, not the file
// extension. An EPUB renamed to .txt still imports as an EPUB.
func DetectFormat(name string, data []byte) (model.BookFormat, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return model.FormatEPUB, nil
	case bytes.HasPrefix(data, pdfMagic):
		return model.FormatPDF, nil
	case len(data) >= 68 && bytes.Equal(data[60:68], mobiMagic):
		return model.FormatMOBI, nil
	case looksLikeText(data):
		return model.FormatTXT, nil
	default:
		return "", fmt.Errorf("unsupported document format: %s", name)
	}
}

// looksLikeText accepts valid UTF-8 without NUL bytes. Checking a prefix
// is enough; a binary file gives itself away early.
func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > 8192 {
		sample = sample[:8192]
		// Do not judge a rune split by the sample boundary.
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(sample); i++ {
			sample = sample[:len(sample)-1]
		}
	}
	if !utf8.Valid(sample) {
		return false
	}
	return !bytes.ContainsRune(sample, 0)
}
