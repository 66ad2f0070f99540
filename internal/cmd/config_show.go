package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alacambra/presidio-anonymization/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect anonymizer configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration (secrets are never printed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "config.show")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		renderConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// renderConfig writes cfg to w without revealing keys (testable).
func renderConfig(w io.Writer, cfg *config.Config) {
	dirState := "(missing)"
	if dirExists(cfg.DataDir) {
		dirState = "(exists)"
	}
	signing := "set"
	if cfg.UsingDefaultSigningKey() {
		signing = "derived default (set " + config.EnvPrefix + "_SIGNING_KEY)"
	}
	entities := "all"
	if opts, err := cfg.Options(); err == nil && len(cfg.Entities) > 0 {
		entities = strings.Join(opts.Entities(), ", ")
	}
	ledgerState := "disabled"
	if cfg.LedgerEnabled {
		ledgerState = cfg.LedgerDBPath()
		if fileExists(ledgerState) {
			ledgerState += " (exists)"
		}
	}
	sink := cfg.ArtifactSink
	if sink == config.SinkS3 {
		sink = fmt.Sprintf("s3://%s/%s (region %q)", cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion)
	}
	patterns := "embedded"
	if cfg.PatternFile != "" {
		patterns = "embedded + " + cfg.PatternFile
	}

	fmt.Fprintf(w, "Data directory:   %s %s\n", cfg.DataDir, dirState)
	fmt.Fprintf(w, "Ledger DB:        %s\n", ledgerState)
	fmt.Fprintf(w, "Signing key:      %s\n", signing)
	fmt.Fprintf(w, "Language:         %s\n", cfg.Language)
	fmt.Fprintf(w, "Entities:         %s\n", entities)
	fmt.Fprintf(w, "Min confidence:   %g\n", cfg.MinConfidence)
	fmt.Fprintf(w, "Patterns:         %s\n", patterns)
	fmt.Fprintf(w, "Normalize (NFC):  %t\n", cfg.NormalizeUnicode)
	fmt.Fprintf(w, "Max document:     %d MB\n", cfg.MaxDocumentMB)
	fmt.Fprintf(w, "Artifact sink:    %s\n", sink)
	fmt.Fprintf(w, "Server address:   %s\n", cfg.ServerAddr)
	fmt.Fprintf(w, "API keys:         %d configured\n", len(cfg.APIKeys))
	fmt.Fprintf(w, "Rate limit:       %d req/min\n", cfg.RateLimitRPM)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
