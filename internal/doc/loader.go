package doc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"bls-go/internal/bls"
	"bls-go/internal/model"
)

// Loader is the document engine boundary used by the import pipeline.
type Loader struct{}

func NewLoader() *Loader { return &Loader{} }

func (l *Loader) Load(name string, data []byte) (*bls.Document, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}
	switch format {
	case model.FormatEPUB:
		return loadEPUB(name, data)
	case model.FormatPDF:
		return loadPDF(name, data), nil
	case model.FormatMOBI:
		return loadMOBI(name, data)
	case model.FormatTXT:
		return packageText(name, data)
	default:
		return nil, fmt.Errorf("unsupported document format: %s", format)
	}
}

// loadPDF pulls the title out of the document info dictionary when it is
// a plain literal string; otherwise the filename serves. PDFs are not
// packaged books, so no chapter count is needed.
func loadPDF(name string, data []byte) *bls.Document {
	d := &bls.Document{Format: model.FormatPDF, Title: titleFromName(name)}
	if t := pdfInfoString(data, "/Title"); t != "" {
		d.Title = t
	}
	d.Author = pdfInfoString(data, "/Author")
	return d
}

func pdfInfoString(data []byte, key string) string {
	i := bytes.LastIndex(data, []byte(key))
	if i < 0 {
		return ""
	}
	rest := data[i+len(key):]
	open := bytes.IndexByte(rest, '(')
	if open < 0 || open > 4 {
		return ""
	}
	rest = rest[open+1:]
	var out []byte
	for j := 0; j < len(rest); j++ {
		switch rest[j] {
		case '\\':
			j++
			if j < len(rest) {
				out = append(out, rest[j])
			}
		case ')':
			return string(out)
		default:
			out = append(out, rest[j])
		}
	}
	return ""
}

// loadMOBI reads the PalmDB envelope: the database name is the title and
// the record count stands in for chapters.
func loadMOBI(name string, data []byte) (*bls.Document, error) {
	if len(data) < 78 {
		return nil, fmt.Errorf("mobi file too short")
	}
	d := &bls.Document{Format: model.FormatMOBI, Title: titleFromName(name)}
	if dbName := palmDBName(data[:32]); dbName != "" {
		d.Title = dbName
	}
	d.Chapters = int(binary.BigEndian.Uint16(data[76:78]))
	return d, nil
}

func palmDBName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	for _, b := range raw {
		if b < 0x20 || b > 0x7e {
			return ""
		}
	}
	return string(raw)
}

var _ bls.DocumentLoader = (*Loader)(nil)
