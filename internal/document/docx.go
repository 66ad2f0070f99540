package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

const docxBodyPart = "word/document.xml"

// Docx handles Word documents. Reading returns body paragraphs, then table
// rows (non-empty cells joined by " | "), then header and footer text.
// Writing produces a minimal document with one paragraph per non-blank line;
// original formatting is not preserved.
type Docx struct{}

// Extensions implements Handler.
func (Docx) Extensions() []string { return []string{".docx"} }

// Read implements Handler.
func (Docx) Read(_ context.Context, p string) (string, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return "", fmt.Errorf("opening docx %s: %w", p, err)
	}
	defer zr.Close()

	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}
	body, ok := parts[docxBodyPart]
	if !ok {
		return "", fmt.Errorf("opening docx %s: missing %s", p, docxBodyPart)
	}

	content, err := readDocxPart(body)
	if err != nil {
		return "", fmt.Errorf("reading docx %s: %w", p, err)
	}
	out := append(content.paragraphs, content.rows...)

	for _, f := range headerFooterParts(zr.File) {
		hf, err := readDocxPart(f)
		if err != nil {
			return "", fmt.Errorf("reading docx %s: %w", p, err)
		}
		if text := strings.Join(append(hf.paragraphs, hf.rows...), "\n"); text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n"), nil
}

// headerFooterParts returns header and footer parts ordered like sections:
// header1, footer1, header2, footer2, ...
func headerFooterParts(files []*zip.File) []*zip.File {
	type part struct {
		f     *zip.File
		n     int
		order int
	}
	var found []part
	for _, f := range files {
		dir, name := path.Split(f.Name)
		if dir != "word/" || !strings.HasSuffix(name, ".xml") {
			continue
		}
		base := strings.TrimSuffix(name, ".xml")
		for order, prefix := range []string{"header", "footer"} {
			if rest, ok := strings.CutPrefix(base, prefix); ok {
				n, err := strconv.Atoi(rest)
				if err != nil {
					n = 0
				}
				found = append(found, part{f: f, n: n, order: order})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].n != found[j].n {
			return found[i].n < found[j].n
		}
		return found[i].order < found[j].order
	})
	out := make([]*zip.File, len(found))
	for i, p := range found {
		out[i] = p.f
	}
	return out
}

type docxContent struct {
	paragraphs []string
	rows       []string
}

func readDocxPart(f *zip.File) (docxContent, error) {
	rc, err := f.Open()
	if err != nil {
		return docxContent{}, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	content, err := parseWordML(rc)
	if err != nil {
		return docxContent{}, fmt.Errorf("parsing %s: %w", f.Name, err)
	}
	return content, nil
}

// parseWordML walks a WordprocessingML part. Paragraphs outside tables are
// kept when non-blank; top-level table rows become one line each.
func parseWordML(r io.Reader) (docxContent, error) {
	var (
		out       docxContent
		dec       = xml.NewDecoder(r)
		depth     int
		props     int
		para      strings.Builder
		cellParas []string
		cells     []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return docxContent{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 1 {
					cells = cells[:0]
				}
			case "tc":
				if depth == 1 {
					cellParas = cellParas[:0]
				}
			case "p":
				para.Reset()
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return docxContent{}, err
				}
				para.WriteString(s)
			case "pPr", "rPr":
				props++
			case "tab":
				// w:tabs inside paragraph properties are stops, not text.
				if props == 0 {
					para.WriteByte('\t')
				}
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "pPr", "rPr":
				props--
			case "tbl":
				depth--
			case "tr":
				if depth == 1 {
					var kept []string
					for _, c := range cells {
						if c != "" {
							kept = append(kept, c)
						}
					}
					if len(kept) > 0 {
						out.rows = append(out.rows, strings.Join(kept, " | "))
					}
				}
			case "tc":
				if depth == 1 {
					cells = append(cells, strings.TrimSpace(strings.Join(cellParas, "\n")))
				}
			case "p":
				text := para.String()
				if depth == 0 {
					if strings.TrimSpace(text) != "" {
						out.paragraphs = append(out.paragraphs, text)
					}
				} else {
					cellParas = append(cellParas, text)
				}
			}
		}
	}
}

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

	docxDocumentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

	docxDocumentClose = `<w:sectPr/></w:body></w:document>`
)

// Write implements Handler.
func (Docx) Write(_ context.Context, p, text string) error {
	var body bytes.Buffer
	body.WriteString(docxDocumentOpen)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		if err := xml.EscapeText(&body, []byte(line)); err != nil {
			return fmt.Errorf("encoding docx paragraph: %w", err)
		}
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(docxDocumentClose)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(docxContentTypes)},
		{"_rels/.rels", []byte(docxRels)},
		{docxBodyPart, body.Bytes()},
	} {
		w, err := zw.Create(part.name)
		if err != nil {
			return fmt.Errorf("writing docx part %s: %w", part.name, err)
		}
		if _, err := w.Write(part.data); err != nil {
			return fmt.Errorf("writing docx part %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing docx %s: %w", p, err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", p, err)
	}
	return nil
}
