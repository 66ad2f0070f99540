package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigShowCmd_RunsAndShowsDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANONYMIZER_DATA_DIR", dir)
	t.Setenv("ANONYMIZER_SIGNING_KEY", "")
	t.Setenv("ANONYMIZER_API_KEYS", "k1,k2")

	out, err := execute(t, "", "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "Data directory:")
	assert.Contains(t, out, dir)
	assert.Contains(t, out, "(exists)")
	assert.Contains(t, out, "Signing key:      derived default")
	assert.Contains(t, out, "Language:         en")
	assert.Contains(t, out, "Entities:         all")
	assert.Contains(t, out, "Min confidence:   0.7")
	assert.Contains(t, out, "Artifact sink:    file")
	assert.Contains(t, out, "API keys:         2 configured")
	assert.NotContains(t, out, "k1")
}

func TestConfigShowCmd_FlagsOverride(t *testing.T) {
	t.Setenv("ANONYMIZER_DATA_DIR", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("ANONYMIZER_SIGNING_KEY", "cli-test-signing-key-0123456789abcdef")

	out, err := execute(t, "", "config", "show", "-l", "de", "--entities", "person,IBAN_CODE", "--min-confidence", "0.4")
	require.NoError(t, err)

	assert.Contains(t, out, "(missing)")
	assert.Contains(t, out, "Signing key:      set")
	assert.NotContains(t, out, "cli-test-signing-key")
	assert.Contains(t, out, "Language:         de")
	assert.Contains(t, out, "Entities:         PERSON, IBAN_CODE")
	assert.Contains(t, out, "Min confidence:   0.4")
}

func TestConfigShowCmd_S3Sink(t *testing.T) {
	t.Setenv("ANONYMIZER_DATA_DIR", t.TempDir())
	t.Setenv("ANONYMIZER_ARTIFACT_SINK", "s3")
	t.Setenv("ANONYMIZER_S3_BUCKET", "records")
	t.Setenv("ANONYMIZER_S3_PREFIX", "runs")
	t.Setenv("ANONYMIZER_AWS_REGION", "eu-central-1")

	out, err := execute(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `s3://records/runs (region "eu-central-1")`)
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, dirExists(dir))
	assert.False(t, dirExists(filepath.Join(dir, "nonexistent")))
	// A file is not a directory
	f := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	assert.False(t, dirExists(f))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	assert.True(t, fileExists(f))
	assert.False(t, fileExists(filepath.Join(dir, "nonexistent")))
	assert.False(t, fileExists(dir)) // directory is not a file
}
