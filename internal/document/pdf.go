package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
)

// PDF handles PDF documents. Reading joins the text of non-blank pages with
// a blank line. Writing renders a simple Letter-size text PDF with one
// paragraph per non-blank line; characters outside Windows-1252 cannot be
// rendered by the core fonts and are dropped.
type PDF struct{}

// Extensions implements Handler.
func (PDF) Extensions() []string { return []string{".pdf"} }

// Read implements Handler.
func (PDF) Read(_ context.Context, path string) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parsing pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d of %s: %w", i, path, err)
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

const (
	pdfMargin     = 72
	pdfFontSize   = 11
	pdfLineHeight = 14
	pdfParaGap    = 12
)

// Write implements Handler.
func (PDF) Write(_ context.Context, path, text string) error {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.AddPage()
	doc.SetFont("Helvetica", "", pdfFontSize)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc.MultiCell(0, pdfLineHeight, tr(line), "", "L", false)
		doc.Ln(pdfParaGap)
	}
	if err := doc.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("writing pdf %s: %w", path, err)
	}
	return nil
}
