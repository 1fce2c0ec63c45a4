// Package pdf extracts plain text from uploaded PDF documents.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Errors returned by text extraction.
var (
	ErrNotFound = errors.New("PDF not found")
	ErrNoText   = errors.New("PDF contains no extractable text")
)

// ExtractText extracts the text of the first maxPages pages of the PDF at
// path. maxPages <= 0 reads every page.
func ExtractText(path string, maxPages int) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("checking PDF: %w", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	return readPages(r, maxPages)
}

// ExtractTextReader extracts text from a PDF held in r, for uploads that
// never touch the filesystem.
func ExtractTextReader(r io.ReaderAt, size int64, maxPages int) (string, error) {
	pdfReader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}
	return readPages(pdfReader, maxPages)
}

// readPages concatenates page text, one page per line block. Pages whose
// content cannot be decoded are skipped.
func readPages(r *pdf.Reader, maxPages int) (string, error) {
	numPages := r.NumPage()
	if maxPages <= 0 || maxPages > numPages {
		maxPages = numPages
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	text := NormalizeSpace(builder.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// NormalizeSpace collapses runs of spaces and tabs within lines and drops
// blank lines, keeping line breaks as sentence hints.
func NormalizeSpace(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
