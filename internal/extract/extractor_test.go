package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/devflow/internal/models"
	"github.com/xuri/excelize/v2"
)

// zipOf builds an in-memory archive from name/content pairs.
func zipOf(t *testing.T, entries ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i+1 < len(entries); i += 2 {
		fw, err := w.Create(entries[i])
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(entries[i+1]))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func wordDoc(text string) string {
	return `<w:document><w:body><w:p w:rsidR="00AB"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`
}

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("caf\xc3\xa9\nLine 2"), ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "café\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_latin1Fallback(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("caf\xe9 cr\xe8me"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "café crème" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_unknownExtension(t *testing.T) {
	got, err := NewExtractor().ExtractBytes([]byte("raw content"), ".xyz")
	if err != nil || got != "raw content" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Title")
	_ = f.SetCellValue("Sheet1", "A3", "Value 1")
	_ = f.SetCellValue("Sheet1", "B3", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docx(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes(zipOf(t, "word/document.xml", wordDoc("Searchable docx content")), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Searchable docx content" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxMainPartFromContentTypes(t *testing.T) {
	overrides := []string{
		`<Override PartName="/word/document2.xml" ContentType="` + docxMainType + `"/>`,
		`<Override ContentType="` + docxMainType + `" PartName="/word/document2.xml"/>`,
	}
	for _, override := range overrides {
		content := zipOf(t,
			"[Content_Types].xml", `<Types><Override PartName="/docProps/core.xml" ContentType="x"/>`+override+`</Types>`,
			"word/document2.xml", wordDoc("From document2"),
		)
		got, err := NewExtractor().ExtractBytes(content, ".docx")
		if err != nil {
			t.Fatalf("ExtractBytes: %v", err)
		}
		if got != "From document2" {
			t.Errorf("override %s: got %q", override, got)
		}
	}
}

func TestExtractBytes_docxMissingBody(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes(zipOf(t, "other.xml", ""), ".docx"); err == nil {
		t.Error("expected error when the main part is missing")
	}
}

func TestExtractBytes_pptxSlideOrder(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sld>`
	}
	content := zipOf(t,
		"ppt/slides/slide10.xml", slide("Tenth"),
		"ppt/slides/slide2.xml", slide("Second"),
		"ppt/slides/slide1.xml", slide("First"),
		"ppt/slides/_rels/slide1.xml.rels", "<Relationships/>",
	)
	got, err := NewExtractor().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "First Second Tenth" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_pptxNotZip(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a zip"), ".pptx"); err == nil {
		t.Error("expected error for invalid pptx")
	}
}

func TestExtractBytes_odfDocumentOrder(t *testing.T) {
	xml := `<office:document><draw:page><text:h text:outline-level="1">Slide title</text:h>` +
		`<text:p>Body <text:span>inline</text:span></text:p><text:p>Closing</text:p></draw:page></office:document>`
	for _, ext := range []string{".odp", ".ods", ".odt"} {
		got, err := NewExtractor().ExtractBytes(zipOf(t, "content.xml", xml), ext)
		if err != nil {
			t.Fatalf("%s: %v", ext, err)
		}
		if got != "Slide title inline Closing" {
			t.Errorf("%s: got %q", ext, got)
		}
	}
}

func TestExtractBytes_odfContentMissing(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes(zipOf(t, "meta.xml", ""), ".ods"); err == nil {
		t.Error("expected error when content.xml is missing")
	}
}

func TestExtract_files(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.TXT")
	if err := os.WriteFile(txt, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	xlsx := filepath.Join(dir, "data.xlsx")
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(xlsx); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	e := NewExtractor()
	for path, want := range map[string]string{txt: "File content", xlsx: "Searchable text"} {
		got, err := e.Extract(path)
		if err != nil {
			t.Fatalf("Extract(%s): %v", path, err)
		}
		if got != want {
			t.Errorf("Extract(%s) = %q, want %q", path, got, want)
		}
	}
	if _, err := e.Extract(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestProcessUpload(t *testing.T) {
	e := NewExtractor()

	text, fileType, err := e.ProcessUpload("Notes.TXT", []byte("plain upload"))
	if err != nil || text != "plain upload" || fileType != FileTypeTXT {
		t.Errorf("txt: %q %q %v", text, fileType, err)
	}

	text, fileType, err = e.ProcessUpload("report.docx", zipOf(t, "word/document.xml", wordDoc("Quarterly report")))
	if err != nil || text != "Quarterly report" || fileType != FileTypeDOCX {
		t.Errorf("docx: %q %q %v", text, fileType, err)
	}

	text, _, err = e.ProcessUpload("legacy.txt", []byte("na\xefve"))
	if err != nil || text != "naïve" {
		t.Errorf("latin-1 txt: %q %v", text, err)
	}
}

func TestProcessUpload_rejected(t *testing.T) {
	e := NewExtractor()
	for _, name := range []string{"sheet.xlsx", "image.png", "noext"} {
		if _, _, err := e.ProcessUpload(name, []byte("x")); !errors.Is(err, models.ErrUnsupportedType) {
			t.Errorf("%s: err = %v, want ErrUnsupportedType", name, err)
		}
	}
	if _, _, err := e.ProcessUpload("broken.pdf", []byte("not a pdf")); err == nil || errors.Is(err, models.ErrUnsupportedType) {
		t.Errorf("corrupt pdf: err = %v", err)
	}
}

func TestExtract_missingFileIsNotFound(t *testing.T) {
	_, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "gone.pdf"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExtractBytes_extensionCaseInsensitive(t *testing.T) {
	got, err := NewExtractor().ExtractBytes(zipOf(t, "word/document.xml", wordDoc("Upper case ext")), ".DOCX")
	if err != nil || got != "Upper case ext" {
		t.Errorf("got %q, %v", got, err)
	}
}
