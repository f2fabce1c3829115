package doc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"bls-go/internal/bls"
	"bls-go/internal/model"
)

// Minimal EPUB reading: enough of the OPF package document to get the
// display title, author, chapter count and cover image. Everything else
// about the format is the rendering engine's problem.

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	Properties string `xml:"properties,attr"`
}

type opfPackage struct {
	Metadata struct {
		Titles   []string `xml:"title"`
		Creators []string `xml:"creator"`
		Metas    []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemrefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func loadEPUB(name string, data []byte) (*bls.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening epub archive: %w", err)
	}

	opfPath, err := rootfilePath(zr)
	if err != nil {
		return nil, err
	}

	var pkg opfPackage
	opfData, err := zipFile(zr, opfPath)
	if err != nil {
		return nil, err
	}
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("parsing package document: %w", err)
	}

	d := &bls.Document{
		Format:   model.FormatEPUB,
		Title:    first(pkg.Metadata.Titles),
		Author:   first(pkg.Metadata.Creators),
		Chapters: len(pkg.Spine.Itemrefs),
	}
	if d.Title == "" {
		d.Title = titleFromName(name)
	}

	if href := coverHref(&pkg); href != "" {
		raw, err := zipFile(zr, path.Join(path.Dir(opfPath), href))
		if err == nil {
			d.Cover = toPNG(raw)
		}
	}
	return d, nil
}

func rootfilePath(zr *zip.Reader) (string, error) {
	data, err := zipFile(zr, "META-INF/container.xml")
	if err != nil {
		return "", fmt.Errorf("reading container.xml: %w", err)
	}
	var c epubContainer
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("parsing container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("container.xml names no rootfile")
	}
	return c.Rootfiles[0].FullPath, nil
}

// coverHref finds the cover image: EPUB 3 marks the manifest item with a
// cover-image property, EPUB 2 points at it through a meta named cover.
func coverHref(pkg *opfPackage) string {
	for _, item := range pkg.Manifest.Items {
		if strings.Contains(item.Properties, "cover-image") {
			return item.Href
		}
	}
	for _, m := range pkg.Metadata.Metas {
		if m.Name != "cover" {
			continue
		}
		for _, item := range pkg.Manifest.Items {
			if item.ID == m.Content {
				return item.Href
			}
		}
	}
	return ""
}

func zipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("missing archive entry %s: %w", name, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// toPNG normalizes a cover to PNG so the store always holds cover.png.
// An undecodable image drops the cover rather than failing the import.
func toPNG(raw []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func first(values []string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func titleFromName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		return "Untitled"
	}
	return base
}
