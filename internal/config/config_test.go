package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alacambra/presidio-anonymization/internal/document"
	"github.com/alacambra/presidio-anonymization/internal/entity"
)

func resetViper(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		KeyDataDir, KeySigningKey, KeyLanguage, KeyEntities, KeyMinConfidence,
		KeyPatternFile, KeyNormalizeUnicode, KeyMaxDocumentMB, KeyArtifactSink,
		KeyS3Bucket, KeyS3Prefix, KeyAWSRegion, KeyServerAddr, KeyAPIKeys,
		KeyRateLimitRPM, KeyLedger,
	} {
		t.Setenv("ANONYMIZER_"+strings.ToUpper(key), "")
	}
	viper.Reset()
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	SetDefaults()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, entity.DefaultLanguage, cfg.Language)
	assert.Empty(t, cfg.Entities)
	assert.InDelta(t, entity.DefaultMinConfidence, cfg.MinConfidence, 1e-9)
	assert.Equal(t, document.DefaultMaxSizeMB, cfg.MaxDocumentMB)
	assert.Equal(t, SinkFile, cfg.ArtifactSink)
	assert.Equal(t, DefaultServerAddr, cfg.ServerAddr)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
	assert.True(t, cfg.LedgerEnabled)
	assert.False(t, cfg.NormalizeUnicode)
	assert.True(t, cfg.UsingDefaultSigningKey(), "should report default key when none is set")
	assert.Len(t, cfg.SigningKey, 64)
}

func TestLoad_DefaultKeyIsStablePerDataDir(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	t.Setenv("ANONYMIZER_DATA_DIR", dir)

	a, err := Load()
	require.NoError(t, err)
	b, err := Load()
	require.NoError(t, err)
	assert.Equal(t, a.SigningKey, b.SigningKey)
	assert.NotEqual(t, deriveDefaultKey(dir, "ledger-signing"), deriveDefaultKey(dir+"x", "ledger-signing"))
}

func TestLoad_ExplicitValues(t *testing.T) {
	resetViper(t)
	t.Setenv("ANONYMIZER_SIGNING_KEY", "my-signing-key-at-least-32-chars!")
	t.Setenv("ANONYMIZER_LANGUAGE", "ES")
	t.Setenv("ANONYMIZER_ENTITIES", "PERSON, EMAIL_ADDRESS")
	t.Setenv("ANONYMIZER_MIN_CONFIDENCE", "0.5")
	t.Setenv("ANONYMIZER_API_KEYS", "k1,k2")
	t.Setenv("ANONYMIZER_NORMALIZE_UNICODE", "true")
	t.Setenv("ANONYMIZER_LEDGER", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "my-signing-key-at-least-32-chars!", cfg.SigningKey)
	assert.False(t, cfg.UsingDefaultSigningKey())
	assert.Equal(t, "es", cfg.Language)
	assert.Equal(t, []string{"PERSON", "EMAIL_ADDRESS"}, cfg.Entities)
	assert.InDelta(t, 0.5, cfg.MinConfidence, 1e-9)
	assert.Equal(t, []string{"k1", "k2"}, cfg.APIKeys)
	assert.True(t, cfg.NormalizeUnicode)
	assert.False(t, cfg.LedgerEnabled)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "es", opts.Language())
	assert.True(t, opts.Allows(entity.Person))
	assert.False(t, opts.Allows(entity.PhoneNumber))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"short signing key", map[string]string{"ANONYMIZER_SIGNING_KEY": "short"}, "signing key must be at least 32 bytes"},
		{"unknown language", map[string]string{"ANONYMIZER_LANGUAGE": "fr"}, "unsupported language"},
		{"unknown entity", map[string]string{"ANONYMIZER_ENTITIES": "SSN"}, "unsupported entity type"},
		{"threshold above one", map[string]string{"ANONYMIZER_MIN_CONFIDENCE": "1.5"}, "confidence threshold"},
		{"zero document size", map[string]string{"ANONYMIZER_MAX_DOCUMENT_MB": "0"}, "max_document_mb must be positive"},
		{"negative rate limit", map[string]string{"ANONYMIZER_RATE_LIMIT_RPM": "-1"}, "rate_limit_rpm"},
		{"unknown sink", map[string]string{"ANONYMIZER_ARTIFACT_SINK": "ftp"}, "artifact_sink must be"},
		{"s3 without bucket", map[string]string{"ANONYMIZER_ARTIFACT_SINK": "s3"}, "requires s3_bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_S3Sink(t *testing.T) {
	resetViper(t)
	t.Setenv("ANONYMIZER_ARTIFACT_SINK", "S3")
	t.Setenv("ANONYMIZER_S3_BUCKET", "artifacts")
	t.Setenv("ANONYMIZER_S3_PREFIX", "runs/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SinkS3, cfg.ArtifactSink)
	assert.Equal(t, "artifacts", cfg.S3Bucket)
	assert.Equal(t, "runs/", cfg.S3Prefix)
}

func TestLoad_CustomDataDir(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	t.Setenv("ANONYMIZER_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.LedgerDBPath())
}

func TestEnsureDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	cfg := &Config{DataDir: dir}
	require.NoError(t, cfg.EnsureDataDir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadDotEnv(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ANONYMIZER_LANGUAGE=de\n"), 0o600))
	// .env never overrides a variable that is already present, even when empty.
	require.NoError(t, os.Unsetenv("ANONYMIZER_LANGUAGE"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "de", cfg.Language)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, splitList([]string{"A,B", " C ", ""}))
	assert.Nil(t, splitList(nil))
}
