package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
		want   Paths
	}{
		{
			name:  "default output beside input",
			input: "/docs/report.txt",
			want: Paths{
				Input:    "/docs/report.txt",
				Output:   "/docs/report.anonym.txt",
				Mapping:  "/docs/report.anonym_mapping.json",
				Excluded: "/docs/report.anonym_excluded_entities.json",
			},
		},
		{
			name:   "explicit output",
			input:  "/docs/contract.docx",
			output: "/out/clean.docx",
			want: Paths{
				Input:    "/docs/contract.docx",
				Output:   "/out/clean.docx",
				Mapping:  "/out/clean_mapping.json",
				Excluded: "/out/clean_excluded_entities.json",
			},
		},
		{
			name:   "output equal to input is redirected",
			input:  "/docs/letter.pdf",
			output: "/docs/../docs/letter.pdf",
			want: Paths{
				Input:    "/docs/letter.pdf",
				Output:   "/docs/letter.anonym.pdf",
				Mapping:  "/docs/letter.anonym_mapping.json",
				Excluded: "/docs/letter.anonym_excluded_entities.json",
			},
		},
		{
			name:  "dotted stem keeps inner dots",
			input: "/docs/q3.notes.md",
			want: Paths{
				Input:    "/docs/q3.notes.md",
				Output:   "/docs/q3.notes.anonym.md",
				Mapping:  "/docs/q3.notes.anonym_mapping.json",
				Excluded: "/docs/q3.notes.anonym_excluded_entities.json",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePaths(tt.input, tt.output))
		})
	}
}

func TestResolvePaths_SymlinkToInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "memo.txt")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o600))
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(input, link))

	p := ResolvePaths(input, link)
	assert.Equal(t, filepath.Join(dir, "memo.anonym.txt"), p.Output)
}

func TestIsAnonymized(t *testing.T) {
	assert.True(t, IsAnonymized("/a/report.anonym.txt"))
	assert.True(t, IsAnonymized(DefaultOutput("contract.docx")))
	assert.False(t, IsAnonymized("/a/report.txt"))
	assert.False(t, IsAnonymized("/a/anonym.txt"))
}
