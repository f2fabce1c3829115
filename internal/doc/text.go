package doc

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"bls-go/internal/bls"
	"bls-go/internal/model"
)

// Plain text is converted into a minimal single-rendition EPUB so the
// rest of the system only ever deals with packaged books. The converted
// bytes, not the raw text, are what gets stored and uploaded.

// chapterByteBudget bounds how much text lands in one chapter file.
// Splits happen at paragraph boundaries, so chapters can run over.
const chapterByteBudget = 64 * 1024

func packageText(name string, data []byte) (*bls.Document, error) {
	title := titleFromName(name)
	chapters := splitChapters(string(data))
	if len(chapters) == 0 {
		return nil, fmt.Errorf("text file has no content")
	}

	packaged, err := buildEPUB(title, chapters)
	if err != nil {
		return nil, err
	}

	return &bls.Document{
		Format:   model.FormatTXT,
		Title:    title,
		Chapters: len(chapters),
		Packaged: packaged,
	}, nil
}

// splitChapters groups paragraphs (blank-line separated) into chapters of
// roughly chapterByteBudget each.
func splitChapters(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var chapters []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > chapterByteBudget {
			chapters = append(chapters, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chapters = append(chapters, current.String())
	}
	return chapters
}

func buildEPUB(title string, chapters []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// The mimetype entry must come first and be stored uncompressed.
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte("application/epub+zip")); err != nil {
		return nil, err
	}

	if err := addEntry(zw, "META-INF/container.xml", containerXML); err != nil {
		return nil, err
	}
	if err := addEntry(zw, "OEBPS/content.opf", packageOPF(title, len(chapters))); err != nil {
		return nil, err
	}
	for i, text := range chapters {
		name := fmt.Sprintf("OEBPS/chapter%03d.xhtml", i+1)
		if err := addEntry(zw, name, chapterXHTML(title, text)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addEntry(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(content))
	return err
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

func packageOPF(title string, chapters int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">` + html.EscapeString(title) + `</dc:identifier>
    <dc:title>` + html.EscapeString(title) + `</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
`)
	for i := 1; i <= chapters; i++ {
		fmt.Fprintf(&b, `    <item id="ch%03d" href="chapter%03d.xhtml" media-type="application/xhtml+xml"/>%s`, i, i, "\n")
	}
	b.WriteString("  </manifest>\n  <spine>\n")
	for i := 1; i <= chapters; i++ {
		fmt.Fprintf(&b, `    <itemref idref="ch%03d"/>%s`, i, "\n")
	}
	b.WriteString("  </spine>\n</package>\n")
	return b.String()
}

func chapterXHTML(title, text string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + html.EscapeString(title) + `</title></head>
<body>
`)
	for _, para := range strings.Split(text, "\n\n") {
		b.WriteString("<p>" + html.EscapeString(para) + "</p>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
