package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alacambra/presidio-anonymization/internal/config"
	"github.com/alacambra/presidio-anonymization/internal/otel"
)

// resolvedVersion returns Version unless it is "dev" and Go build info
// contains a real module version (e.g. from go install ...@v0.3.1).
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// tracer is the package-level tracer for all CLI commands
var tracer = otel.Tracer("github.com/alacambra/presidio-anonymization/internal/cmd")

var (
	// otelShutdown holds the OTel shutdown function, called from Execute()
	otelShutdown func(context.Context) error

	// Version info injected via ldflags at build time
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	// Global flags
	cfgFile       string
	verbose       bool
	logLevel      string
	logFormat     string
	otelFlag      bool
	flagLanguage  string
	flagEntities  string
	flagThreshold float64
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "anonymize",
	Short: "Detect and replace personal data in documents",
	Long: `anonymize finds personal data in text documents and replaces every
occurrence with a numbered placeholder such as <PERSON_1>.

Each run writes:
- the anonymized document (<name>.anonym.<ext>)
- a mapping record from placeholders back to the original values
- an excluded-entities record for detections that were left in place
- a signed ledger row describing the run

Supported formats are .txt, .md, .docx and .pdf.`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		// Initialize OpenTelemetry when --otel, -v, or ANONYMIZER_OTEL_ENABLED=true
		otelEnabled := otelFlag || verbose || os.Getenv(config.EnvPrefix+"_OTEL_ENABLED") == "true"
		shutdown, err := otel.Setup(otel.Settings{
			ServiceName: "presidio-anonymization",
			Version:     resolvedVersion(),
			Enabled:     otelEnabled,
		})
		if err != nil {
			return fmt.Errorf("initializing OpenTelemetry: %w", err)
		}
		otelShutdown = shutdown
		return nil
	},
}

func setupLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Logs go to stderr so stdout stays clean for piping (e.g. anonymize text < in.txt).
	if logFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().
			Timestamp().
			Logger()
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./anonymizer.config.yaml or ~/.anonymizer/anonymizer.config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	pf.BoolVar(&otelFlag, "otel", false, "enable OpenTelemetry (traces and metrics to stdout)")
	pf.StringVarP(&flagLanguage, "language", "l", "", "analysis language (en, es, de, ca)")
	pf.StringVar(&flagEntities, "entities", "", "comma-separated entity types to detect (default: all)")
	pf.Float64Var(&flagThreshold, "min-confidence", 0, "minimum confidence score in [0,1] (default 0.7)")

	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("otel", pf.Lookup("otel"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", pf.Lookup("log-format"))
	_ = viper.BindPFlag(config.KeyLanguage, pf.Lookup("language"))
	_ = viper.BindPFlag(config.KeyEntities, pf.Lookup("entities"))
	_ = viper.BindPFlag(config.KeyMinConfidence, pf.Lookup("min-confidence"))
}

func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("reading .env failed")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search in ~/.anonymizer/ and current directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".anonymizer"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("anonymizer.config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	// Read config (ignore errors - file may not exist yet)
	_ = viper.ReadInConfig()
}

// Execute runs the root command and flushes OTel on exit
func Execute() error {
	err := rootCmd.Execute()
	if otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(ctx)
	}
	return err
}
