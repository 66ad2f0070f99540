// Package config holds operator-level configuration for an anonymizer
// installation: where run state lives, how the run ledger is signed, the
// analysis defaults applied to every document, where artifacts are written,
// and how the HTTP front end is exposed.
//
// Values come from ANONYMIZER_* env vars, an optional
// anonymizer.config.yaml, and a .env file in the working directory.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/alacambra/presidio-anonymization/internal/document"
	"github.com/alacambra/presidio-anonymization/internal/entity"
	"github.com/alacambra/presidio-anonymization/internal/ledger"
)

// Viper keys. Each maps to an env var with the ANONYMIZER_ prefix
// (e.g. "min_confidence" → ANONYMIZER_MIN_CONFIDENCE) and to a YAML field
// in anonymizer.config.yaml.
const (
	KeyDataDir          = "data_dir"
	KeySigningKey       = "signing_key"
	KeyLanguage         = "language"
	KeyEntities         = "entities"
	KeyMinConfidence    = "min_confidence"
	KeyPatternFile      = "pattern_file"
	KeyNormalizeUnicode = "normalize_unicode"
	KeyMaxDocumentMB    = "max_document_mb"
	KeyArtifactSink     = "artifact_sink"
	KeyS3Bucket         = "s3_bucket"
	KeyS3Prefix         = "s3_prefix"
	KeyAWSRegion        = "aws_region"
	KeyServerAddr       = "server_addr"
	KeyAPIKeys          = "api_keys"
	KeyRateLimitRPM     = "rate_limit_rpm"
	KeyLedger           = "ledger"
)

// Artifact sink kinds.
const (
	SinkFile = "file"
	SinkS3   = "s3"
)

const (
	EnvPrefix         = "ANONYMIZER"
	DefaultServerAddr = ":8080"
	DefaultRateLimit  = 120
)

// Config holds resolved operator-level configuration for one process.
type Config struct {
	DataDir          string   // Base directory for run state (~/.anonymizer)
	SigningKey       string   // HMAC-SHA256 key for ledger rows (≥32 bytes)
	Language         string   // Default analysis language
	Entities         []string // Entity filter; empty selects every type
	MinConfidence    float64  // Confidence threshold
	PatternFile      string   // Extra recognizers layered over the embedded set
	NormalizeUnicode bool     // NFC-normalize document text on read
	MaxDocumentMB    int      // Largest document accepted for reading
	ArtifactSink     string   // "file" or "s3"
	S3Bucket         string
	S3Prefix         string
	AWSRegion        string
	ServerAddr       string
	APIKeys          []string // Empty disables API-key auth
	RateLimitRPM     int      // Global requests per minute; 0 disables
	LedgerEnabled    bool     // Record completed runs in the ledger

	usingDefaultSigningKey bool
}

// UsingDefaultSigningKey returns true if the ledger signing key was derived
// (not set explicitly).
func (c *Config) UsingDefaultSigningKey() bool {
	return c.usingDefaultSigningKey
}

// LedgerDBPath returns the full path to the run ledger SQLite database.
func (c *Config) LedgerDBPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// Options builds the immutable analysis configuration for the engine.
func (c *Config) Options() (entity.Options, error) {
	return entity.NewOptions(c.Language, c.Entities, c.MinConfidence)
}

// WarnIfDefaultKeys logs a warning when the signing key is not explicitly set.
func (c *Config) WarnIfDefaultKeys() {
	if c.usingDefaultSigningKey {
		log.Warn().Msg("Using generated default ANONYMIZER_SIGNING_KEY; set via env var or config file for production")
	}
}

func init() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	SetDefaults()
}

// SetDefaults registers the default value of every key with viper.
func SetDefaults() {
	viper.SetDefault(KeyLanguage, entity.DefaultLanguage)
	viper.SetDefault(KeyMinConfidence, entity.DefaultMinConfidence)
	viper.SetDefault(KeyNormalizeUnicode, false)
	viper.SetDefault(KeyMaxDocumentMB, document.DefaultMaxSizeMB)
	viper.SetDefault(KeyArtifactSink, SinkFile)
	viper.SetDefault(KeyServerAddr, DefaultServerAddr)
	viper.SetDefault(KeyRateLimitRPM, DefaultRateLimit)
	viper.SetDefault(KeyLedger, true)
}

// Load reads configuration from Viper (which merges env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:          resolveDataDir(),
		SigningKey:       viper.GetString(KeySigningKey),
		Language:         strings.ToLower(strings.TrimSpace(viper.GetString(KeyLanguage))),
		Entities:         splitList(viper.GetStringSlice(KeyEntities)),
		MinConfidence:    viper.GetFloat64(KeyMinConfidence),
		PatternFile:      viper.GetString(KeyPatternFile),
		NormalizeUnicode: viper.GetBool(KeyNormalizeUnicode),
		MaxDocumentMB:    viper.GetInt(KeyMaxDocumentMB),
		ArtifactSink:     strings.ToLower(strings.TrimSpace(viper.GetString(KeyArtifactSink))),
		S3Bucket:         viper.GetString(KeyS3Bucket),
		S3Prefix:         viper.GetString(KeyS3Prefix),
		AWSRegion:        viper.GetString(KeyAWSRegion),
		ServerAddr:       viper.GetString(KeyServerAddr),
		APIKeys:          splitList(viper.GetStringSlice(KeyAPIKeys)),
		RateLimitRPM:     viper.GetInt(KeyRateLimitRPM),
		LedgerEnabled:    viper.GetBool(KeyLedger),
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "ledger-signing")
		cfg.usingDefaultSigningKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv copies variables from .env files into the process environment
// without overriding values that are already set. With no paths it reads
// ./.env. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".anonymizer"
	}
	return filepath.Join(home, ".anonymizer")
}

// deriveDefaultKey produces a deterministic 32-byte fallback key from the
// data directory path and a salt. It is not a secret; it only lets a fresh
// install sign ledger rows with a per-machine key.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("anonymizer:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

// splitList flattens comma-separated env values ("A,B") and YAML lists into
// one trimmed slice.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	if _, err := ledger.NewSigner(c.SigningKey); err != nil {
		return fmt.Errorf("signing_key: %w; set %s_SIGNING_KEY", err, EnvPrefix)
	}
	if _, err := c.Options(); err != nil {
		return err
	}
	if c.MaxDocumentMB <= 0 {
		return fmt.Errorf("max_document_mb must be positive")
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("rate_limit_rpm must not be negative")
	}
	switch c.ArtifactSink {
	case SinkFile:
	case SinkS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("artifact_sink %q requires s3_bucket", SinkS3)
		}
	default:
		return fmt.Errorf("artifact_sink must be %q or %q (got %q)", SinkFile, SinkS3, c.ArtifactSink)
	}
	return nil
}
