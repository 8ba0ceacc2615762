package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/devflow/internal/models"
)

// Upload file types accepted by ProcessUpload.
const (
	FileTypePDF  = "pdf"
	FileTypeDOCX = "docx"
	FileTypeTXT  = "txt"
)

// uploadTypes are the only file types ProcessUpload accepts.
var uploadTypes = map[string]bool{FileTypePDF: true, FileTypeDOCX: true, FileTypeTXT: true}

// ProcessUpload extracts text from an uploaded file. Only PDF, DOCX and TXT are accepted;
// anything else fails with models.ErrUnsupportedType. It returns the text and the file type.
func (e *Extractor) ProcessUpload(filename string, content []byte) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fileType := strings.TrimPrefix(ext, ".")
	if !uploadTypes[fileType] {
		return "", "", fmt.Errorf("%w: %q", models.ErrUnsupportedType, filename)
	}
	text, err := e.ExtractBytes(content, ext)
	if err != nil {
		return "", "", fmt.Errorf("process upload %q: %w", filename, err)
	}
	return text, fileType, nil
}
