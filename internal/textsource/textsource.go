// Package textsource turns an uploaded statement file into plain text for bank detection.
package textsource

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"fjacquet/statement-import/internal/models"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

// Source extracts detection text from raw file content.
type Source interface {
	Extract(fileName, mimeType string, content []byte) (string, models.DocumentFormat, error)
}

// FormatFunc decides the document format of an upload.
type FormatFunc func(fileName, mimeType string) models.DocumentFormat

// Default reads PDFs with ledongthuc/pdf and tabular exports as text.
type Default struct {
	formatOf FormatFunc
}

// New creates the default Source.
func New(formatOf FormatFunc) *Default {
	return &Default{formatOf: formatOf}
}

// Extract returns the document text and its format. The format is reported even when
// text extraction fails.
func (d *Default) Extract(fileName, mimeType string, content []byte) (string, models.DocumentFormat, error) {
	format := d.formatOf(fileName, mimeType)
	switch format {
	case models.FormatPDF:
		text, err := PDFText(content)
		return text, format, err
	case models.FormatCSV:
		return DecodeText(content), format, nil
	default:
		return "", format, fmt.Errorf("no text source for %s", fileName)
	}
}

// MockSource returns fixed values.
type MockSource struct {
	Text   string
	Format models.DocumentFormat
	Err    error
}

// Extract returns the configured text, format and error.
func (m *MockSource) Extract(string, string, []byte) (string, models.DocumentFormat, error) {
	return m.Text, m.Format, m.Err
}

// PDFText extracts the plain text of every page. The pdf library panics on some
// malformed inputs; those are reported as errors.
func PDFText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			pages = append(pages, pageText)
		}
	}

	if len(pages) == 0 {
		whole, err := r.GetPlainText()
		if err != nil {
			return "", fmt.Errorf("failed to extract PDF text: %w", err)
		}
		data, err := io.ReadAll(whole)
		if err != nil {
			return "", fmt.Errorf("failed to read PDF text: %w", err)
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("no text found in PDF; it may be a scanned image")
	}
	return strings.Join(pages, "\n"), nil
}

// DecodeText decodes UTF-8 content, dropping a byte order mark. Anything that is not
// valid UTF-8 is read as Windows-1252, the usual encoding of bank CSV exports.
func DecodeText(content []byte) string {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if utf8.Valid(content) {
		return string(content)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return strings.ToValidUTF8(string(content), "�")
	}
	return string(decoded)
}
