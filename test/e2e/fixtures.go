package e2e

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// FixtureExtensions are the file types the directory tests generate. PDF is left out because
// there is no small hand-built PDF whose text the extractor can recover.
var FixtureExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx",
	".odt", ".odp", ".ods",
}

// zipped archives: member name plus a format string wrapping the escaped text.
var zippedFixtures = map[string][2]string{
	".docx": {"word/document.xml", `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:body></w:document>`},
	".pptx": {"ppt/slides/slide1.xml", `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`},
	".odt":  {"content.xml", `<office:document-content><office:body><office:text><text:p>%s</text:p></office:text></office:body></office:document-content>`},
	".odp":  {"content.xml", `<office:document-content><office:body><draw:page><draw:text-box><text:p>%s</text:p></draw:text-box></draw:page></office:body></office:document-content>`},
	".ods":  {"content.xml", `<office:document-content><office:body><table:table><table:table-row><table:table-cell><text:p>%s</text:p></table:table-cell></table:table-row></table:table></office:body></office:document-content>`},
}

// EncodeFixture returns the bytes of a small file of type ext whose extractable text is text.
// Unknown extensions are written as plain text.
func EncodeFixture(ext, text string) ([]byte, error) {
	if ext == ".xlsx" {
		return spreadsheet(text)
	}
	if z, ok := zippedFixtures[ext]; ok {
		return zipped(z[0], z[1], text)
	}
	return []byte(text), nil
}

func zipped(member, layout, text string) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create(member)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(fw, layout, escaped.String()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func spreadsheet(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
