package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"testing"
)

// EPUBOptions controls the shape of a generated test EPUB.
type EPUBOptions struct {
	Title    string
	Author   string
	Chapters int
	Cover    bool
}

// NewEPUB builds a minimal but well-formed EPUB archive.
func NewEPUB(t *testing.T, opts EPUBOptions) []byte {
	t.Helper()

	if opts.Chapters == 0 {
		opts.Chapters = 1
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("creating mimetype entry: %v", err)
	}
	w.Write([]byte("application/epub+zip"))

	add := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		w.Write([]byte(content))
	}

	add("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine bytes.Buffer
	for i := 1; i <= opts.Chapters; i++ {
		fmt.Fprintf(&manifest, `<item id="ch%d" href="ch%d.xhtml" media-type="application/xhtml+xml"/>`, i, i)
		fmt.Fprintf(&spine, `<itemref idref="ch%d"/>`, i)
		add(fmt.Sprintf("OEBPS/ch%d.xhtml", i),
			fmt.Sprintf(`<html xmlns="http://www.w3.org/1999/xhtml"><body><p>Chapter %d</p></body></html>`, i))
	}

	coverItem := ""
	if opts.Cover {
		coverItem = `<item id="cover-img" href="cover.png" media-type="image/png" properties="cover-image"/>`
		coverFile, err := zw.Create("OEBPS/cover.png")
		if err != nil {
			t.Fatalf("creating cover entry: %v", err)
		}
		coverFile.Write(PNGImage(t))
	}

	add("OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">test</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:creator>%s</dc:creator>
  </metadata>
  <manifest>%s%s</manifest>
  <spine>%s</spine>
</package>`, opts.Title, opts.Author, manifest.String(), coverItem, spine.String()))

	if err := zw.Close(); err != nil {
		t.Fatalf("closing epub archive: %v", err)
	}
	return buf.Bytes()
}

// PNGImage encodes a tiny valid PNG.
func PNGImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}
