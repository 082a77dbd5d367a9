// Package reader extracts plain text from document files ahead of chunking.
package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/localrivet/kbrag/internal/errortypes"
)

// Reader turns a document file into its plain-text content.
type Reader interface {
	// Read returns the full text of the file at path.
	Read(path string) (string, error)
}

// FileReader reads documents from the local filesystem, dispatching on file
// extension. Plain text and markdown are returned verbatim; PDF pages are
// extracted and joined with newlines.
type FileReader struct{}

// NewFileReader creates a new FileReader.
func NewFileReader() *FileReader {
	return &FileReader{}
}

// Read returns the text content of the file at path.
func (r *FileReader) Read(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errortypes.ValidationError(err, fmt.Sprintf("failed to read document %s", path))
		}
		return string(data), nil
	case ".pdf":
		return readPDF(path)
	default:
		return "", errortypes.FormatError(nil, fmt.Sprintf("unsupported file type: %s", ext))
	}
}

// readPDF extracts the plain text of every page, in page order.
func readPDF(path string) (string, error) {
	file, doc, err := pdf.Open(path)
	if err != nil {
		return "", errortypes.FormatError(err, fmt.Sprintf("failed to open PDF %s", path))
	}
	defer file.Close()

	var pages []string
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", errortypes.FormatError(err, fmt.Sprintf("failed to extract text from PDF page %d", i))
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n"), nil
}
