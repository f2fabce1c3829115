package bls

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"

	"bls-go/internal/model"
)

// Book identity: a fingerprint is derived from a bounded sample of the
// file bytes rather than the whole file, so identity stays cheap for
// large books. Same bytes always produce the same fingerprint; it is an
// identity key, not a security primitive.

const (
	fingerprintEdge   = 256 * 1024 // prefix and suffix sample size
	fingerprintMiddle = 64 * 1024  // size-derived middle window
)

// Fingerprint computes the content fingerprint of a file of known size.
// Files no larger than the sample window are hashed in full; larger files
// contribute their size, a prefix, a suffix, and one middle window.
func Fingerprint(r io.ReaderAt, size int64) (string, error) {
	h := sha256.New()

	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])

	if size <= 2*fingerprintEdge+fingerprintMiddle {
		if err := hashRange(h, r, 0, size); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil))[:32], nil
	}

	if err := hashRange(h, r, 0, fingerprintEdge); err != nil {
		return "", err
	}
	// Middle window offset depends on the size, so files that share a
	// prefix and suffix but differ in the body still diverge.
	mid := (size / 2) - fingerprintMiddle/2
	if err := hashRange(h, r, mid, fingerprintMiddle); err != nil {
		return "", err
	}
	if err := hashRange(h, r, size-fingerprintEdge, fingerprintEdge); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil))[:32], nil
}

func hashRange(h io.Writer, r io.ReaderAt, off, n int64) error {
	if _, err := io.Copy(h, io.NewSectionReader(r, off, n)); err != nil {
		return fmt.Errorf("sampling bytes at offset %d: %w", off, err)
	}
	return nil
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	collapsibleSpace     = regexp.MustCompile(`\s+`)
)

// maxSafeFilenameBytes leaves room for the extension within the 255-byte
// name limit common to the target filesystems, including mobile ones.
const maxSafeFilenameBytes = 200

// SafeFilename strips filesystem-unsafe characters from name and
// truncates it to a byte budget without splitting a UTF-8 sequence.
func SafeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = collapsibleSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	for len(name) > maxSafeFilenameBytes {
		_, last := lastRune(name)
		name = strings.TrimSpace(name[:len(name)-last])
	}

	if name == "" {
		name = "untitled"
	}
	return name
}

func lastRune(s string) (rune, int) {
	r := []rune(s)
	last := r[len(r)-1]
	return last, len(string(last))
}

// Storage paths under the Books base directory. Every per-book file lives
// in a directory named by the fingerprint.

// BookPath returns the content-store path of the book file itself.
// Plain-text imports are stored as their packaged conversion, so they
// carry the packaged extension even though the format stays txt.
func BookPath(b *model.Book) string {
	name := SafeFilename(strings.TrimSuffix(b.FileName, "."+string(b.Format)))
	if name == "untitled" && b.Title != "" {
		name = SafeFilename(b.Title)
	}
	ext := string(b.Format)
	if b.Format == model.FormatTXT {
		ext = string(model.FormatEPUB)
	}
	return b.Hash + "/" + name + "." + ext
}

// CoverPath returns the content-store path of the extracted cover image.
func CoverPath(hash string) string { return hash + "/cover.png" }

// ConfigPath returns the content-store path of the per-book config file.
func ConfigPath(hash string) string { return hash + "/config.json" }
