// Package extract turns document files into plain text for chunking.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/devflow/internal/models"
)

// decoder turns the raw bytes of one file format into plain text.
type decoder func(content []byte) (string, error)

// decoders maps a lowercase extension to its decoder. Anything missing is read as plain text.
var decoders = map[string]decoder{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractSpreadsheet,
	".pptx": extractPPTX,
	".odt":  odf("ODT"),
	".odp":  odf("ODP"),
	".ods":  odf("ODS"),
}

func odf(kind string) decoder {
	return func(content []byte) (string, error) { return extractODF(kind, content) }
}

func decoderFor(ext string) decoder {
	if d, ok := decoders[strings.ToLower(ext)]; ok {
		return d
	}
	return extractPlain
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and decodes it by extension.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", models.ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes decodes content by ext, which includes the leading dot.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	return decoderFor(ext)(content)
}
