package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

func TestRegistryExtensions(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{".docx", ".md", ".pdf", ".txt"}, r.Extensions())
	assert.True(t, r.Supported("report.TXT"), "extension lookup is case-insensitive")
	assert.True(t, r.Supported("/tmp/a/b.Docx"))
	assert.False(t, r.Supported("image.png"))
	assert.False(t, r.Supported("README"))
}

func TestRegistryUnsupportedFormat(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	_, err := r.Read(ctx, "photo.png")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), ".png")

	err = r.Write(ctx, filepath.Join(t.TempDir(), "out.xlsx"), "x")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = r.Handler("Makefile")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "(none)")
}

func TestPlainRoundTrip(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"notes.txt", "README.md", filepath.Join("nested", "deep", "x.txt")} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			text := "Hello <PERSON_1>,\n\n# Heading\nGrüße aus München\n"
			require.NoError(t, r.Write(ctx, path, text))

			got, err := r.Read(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, text, got, "plain text must round-trip byte for byte")
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := NewRegistry().Read(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadRejectsNonUTF8Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin1.txt")
	require.NoError(t, os.WriteFile(path, []byte("Se\xf1or Garc\xeda"), 0o644))

	_, err := NewRegistry().Read(context.Background(), path)
	require.ErrorIs(t, err, entity.ErrInvalidEncoding)
	assert.Contains(t, err.Error(), "latin1.txt")
}

func TestReadSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 1024*1024+1)), 0o644))

	_, err := NewRegistry(WithMaxSizeMB(1)).Read(context.Background(), path)
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = NewRegistry(WithMaxSizeMB(2)).Read(context.Background(), path)
	require.NoError(t, err)
}

func TestReadNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "name.txt")
	decomposed := "Jose\u0301"
	require.NoError(t, os.WriteFile(path, []byte(decomposed), 0o644))

	raw, err := NewRegistry().Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, decomposed, raw)

	nfc, err := NewRegistry(WithNormalize(true)).Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Jos\u00e9", nfc)
}

type upperHandler struct{ Plain }

func (upperHandler) Extensions() []string { return []string{".TXT"} }

func (upperHandler) Read(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	return strings.ToUpper(string(b)), err
}

func TestWithHandlerOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	got, err := NewRegistry(WithHandler(upperHandler{})).Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)
}
