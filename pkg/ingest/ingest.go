// Package ingest reads plain-text document versions and normalizes them
// for comparison. Binary formats (DOCX, PDF) are not decoded here.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrBinaryInput is returned for payloads containing NUL bytes.
	ErrBinaryInput = errors.New("input looks like a binary file")

	// ErrInvalidUTF8 is returned for payloads that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("input is not valid UTF-8 text")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// Document is a decoded document version.
type Document struct {
	Path string
	Text string
}

// ReadFile reads and decodes the text file at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	text, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &Document{Path: path, Text: text}, nil
}

// Decode validates raw bytes as UTF-8 text and normalizes them: a leading
// BOM is dropped, line endings become "\n", the text is NFKC-normalized,
// typographic quotes become ASCII quotes, and control characters other than
// newline and tab are removed.
func Decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if bytes.IndexByte(data, 0) >= 0 {
		return "", ErrBinaryInput
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}

	return Normalize(string(data)), nil
}

// Normalize applies the text normalization of Decode to an already decoded
// string.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = norm.NFKC.String(text)
	text = quoteReplacer.Replace(text)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
