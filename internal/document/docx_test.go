package document

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func writeDocx(t *testing.T, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func TestDocxRead(t *testing.T) {
	body := `<w:document ` + wordNS + `><w:body>` +
		`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>` +
		`<w:r><w:t>Dear </w:t></w:r><w:r><w:t>John</w:t></w:r></w:p>` +
		para("   ") +
		`<w:tbl>` +
		`<w:tr><w:tc>` + para("Name") + `</w:tc><w:tc>` + para("John Smith") + `</w:tc></w:tr>` +
		`<w:tr><w:tc>` + para(" ") + `</w:tc><w:tc>` + para("x") + `</w:tc></w:tr>` +
		`<w:tr><w:tc>` + para("") + `</w:tc></w:tr>` +
		`</w:tbl>` +
		`<w:p><w:r><w:t>Col</w:t><w:tab/><w:t>B</w:t><w:br/><w:t>next</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	path := writeDocx(t, map[string]string{
		"word/document.xml": body,
		"word/header1.xml":  `<w:hdr ` + wordNS + `>` + para("ACME Corp") + `</w:hdr>`,
		"word/footer1.xml":  `<w:ftr ` + wordNS + `>` + para("Page footer") + `</w:ftr>`,
		"word/footer2.xml":  `<w:ftr ` + wordNS + `>` + para("  ") + `</w:ftr>`,
	})

	got, err := Docx{}.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Dear John",
		"Col\tB\nnext",
		"Name | John Smith",
		"x",
		"ACME Corp",
		"Page footer",
	}, "\n"), got)
}

func TestDocxRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.docx")
	text := "Hello <PERSON_1> & <EMAIL_ADDRESS_1>\n\n  \nSecond\tline"

	require.NoError(t, Docx{}.Write(context.Background(), path, text))

	got, err := Docx{}.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Hello <PERSON_1> & <EMAIL_ADDRESS_1>\nSecond\tline", got)
}

func TestDocxReadErrors(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "plain.docx")
	require.NoError(t, os.WriteFile(notZip, []byte("not a zip"), 0o644))
	_, err := Docx{}.Read(context.Background(), notZip)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening docx")

	noBody := writeDocx(t, map[string]string{"other.xml": "<x/>"})
	_, err = Docx{}.Read(context.Background(), noBody)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing word/document.xml")

	broken := writeDocx(t, map[string]string{"word/document.xml": "<w:document><w:body>"})
	_, err = Docx{}.Read(context.Background(), broken)
	require.Error(t, err)
}
