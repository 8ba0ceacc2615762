package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"
)

const (
	docxDefaultPart  = "word/document.xml"
	contentTypesPart = "[Content_Types].xml"
	odfContentPart   = "content.xml"
	pptxSlidePrefix  = "ppt/slides/slide"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// Text runs in WordprocessingML (<w:t>), DrawingML (<a:t>) and OpenDocument (<text:p|span|h>).
	wordTextRe  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	drawTextRe  = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	odfTextRe   = regexp.MustCompile(`<text:(?:p|span|h)(?:\s[^>]*)?>([^<]*)</text:(?:p|span|h)>`)
	overrideRe  = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameRe  = regexp.MustCompile(`PartName="/?([^"]+)"`)
	contentTyRe = regexp.MustCompile(`ContentType="([^"]+)"`)
)

// officeArchive is an OOXML or OpenDocument package opened from memory.
type officeArchive struct {
	kind string
	zr   *zip.Reader
}

func openOfficeArchive(kind string, content []byte) (*officeArchive, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	return &officeArchive{kind: kind, zr: zr}, nil
}

// part returns the contents of the named entry, or nil when the entry is absent.
func (a *officeArchive) part(name string) ([]byte, error) {
	for _, f := range a.zr.File {
		if f.Name == name {
			return a.read(f)
		}
	}
	return nil, nil
}

func (a *officeArchive) read(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("extract %s: open %s: %w", a.kind, f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: read %s: %w", a.kind, f.Name, err)
	}
	return data, nil
}

// requirePart is part but fails when the entry is missing.
func (a *officeArchive) requirePart(name string) ([]byte, error) {
	data, err := a.part(name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("extract %s: %s not found", a.kind, name)
	}
	return data, nil
}

// joinRuns appends the first capture group of every match to b, space separated,
// with XML entities decoded.
func joinRuns(b *strings.Builder, re *regexp.Regexp, xml []byte) {
	for _, m := range re.FindAllSubmatch(xml, -1) {
		run := strings.TrimSpace(html.UnescapeString(string(m[1])))
		if run == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(run)
	}
}

// docxMainPart resolves the main document part from [Content_Types].xml; some producers
// write it somewhere other than word/document.xml.
func (a *officeArchive) docxMainPart() string {
	types, err := a.part(contentTypesPart)
	if err != nil || types == nil {
		return docxDefaultPart
	}
	for _, override := range overrideRe.FindAll(types, -1) {
		ct := contentTyRe.FindSubmatch(override)
		if ct == nil || string(ct[1]) != docxMainType {
			continue
		}
		if name := partNameRe.FindSubmatch(override); name != nil {
			return string(name[1])
		}
	}
	return docxDefaultPart
}

// extractDOCX collects every <w:t> run of the main document part. Paragraph attributes
// are ignored so documents written by any producer stay searchable.
func extractDOCX(content []byte) (string, error) {
	a, err := openOfficeArchive("DOCX", content)
	if err != nil {
		return "", err
	}
	doc, err := a.requirePart(a.docxMainPart())
	if err != nil {
		return "", err
	}
	var b strings.Builder
	joinRuns(&b, wordTextRe, doc)
	return b.String(), nil
}

// extractPPTX collects <a:t> runs from every slide in slide order.
func extractPPTX(content []byte) (string, error) {
	a, err := openOfficeArchive("PPTX", content)
	if err != nil {
		return "", err
	}
	var slides []*zip.File
	for _, f := range a.zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	sort.SliceStable(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})
	var b strings.Builder
	for _, f := range slides {
		xml, err := a.read(f)
		if err != nil {
			return "", err
		}
		joinRuns(&b, drawTextRe, xml)
	}
	return b.String(), nil
}

func slideNumber(name string) int {
	n := 0
	for _, r := range strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePrefix), ".xml") {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// extractODF collects paragraph, span and heading text from an OpenDocument content.xml
// in document order. It serves .odp, .ods and .odt.
func extractODF(kind string, content []byte) (string, error) {
	a, err := openOfficeArchive(kind, content)
	if err != nil {
		return "", err
	}
	xml, err := a.requirePart(odfContentPart)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	joinRuns(&b, odfTextRe, xml)
	return b.String(), nil
}
