// Package doctor provides health checks for the anonymizer configuration and
// runtime. Used by `anonymize doctor`.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alacambra/presidio-anonymization/internal/artifact"
	"github.com/alacambra/presidio-anonymization/internal/classifier"
	"github.com/alacambra/presidio-anonymization/internal/config"
	"github.com/alacambra/presidio-anonymization/internal/entity"
	"github.com/alacambra/presidio-anonymization/internal/ledger"
)

// Check statuses.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// smokeText must yield an EMAIL_ADDRESS span in every language.
const smokeText = "doctor-probe@example.com"

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"` // pass, warn, fail
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Options controls which check categories to run.
type Options struct {
	SkipRemote bool // Skip AWS credential resolution (for CI/offline)
}

// Run executes all doctor checks and returns a report.
func Run(ctx context.Context, opts Options) *Report {
	report := &Report{}

	cfg, err := config.Load()
	if err != nil {
		report.Checks = []CheckResult{{
			Name: "config_load", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("Cannot load config: %v", err),
			Fix:     "Check " + config.EnvPrefix + "_* variables and anonymizer.config.yaml",
		}}
	} else {
		report.Checks = append(report.Checks, checkConfig(cfg)...)
		report.Checks = append(report.Checks, checkDetectors(ctx, cfg)...)
		report.Checks = append(report.Checks, checkStorage(ctx, cfg, opts)...)
	}

	report.tally()
	return report
}

func (r *Report) tally() {
	r.Summary = Summary{}
	for _, c := range r.Checks {
		switch c.Status {
		case StatusPass:
			r.Summary.Pass++
		case StatusWarn:
			r.Summary.Warn++
		case StatusFail:
			r.Summary.Fail++
		}
	}

	r.Status = StatusPass
	if r.Summary.Warn > 0 {
		r.Status = StatusWarn
	}
	if r.Summary.Fail > 0 {
		r.Status = StatusFail
	}
}

func checkConfig(cfg *config.Config) []CheckResult {
	results := []CheckResult{checkDataDir(cfg)}

	if cfg.UsingDefaultSigningKey() {
		results = append(results, CheckResult{
			Name: "signing_key", Category: "config", Status: StatusWarn,
			Message: "Using generated default", Fix: "Set " + config.EnvPrefix + "_SIGNING_KEY for production",
		})
	} else {
		results = append(results, CheckResult{
			Name: "signing_key", Category: "config", Status: StatusPass, Message: "Configured",
		})
	}

	if len(cfg.APIKeys) == 0 {
		results = append(results, CheckResult{
			Name: "api_keys", Category: "config", Status: StatusWarn,
			Message: "No API keys: `anonymize serve` accepts unauthenticated requests",
			Fix:     "Set " + config.EnvPrefix + "_API_KEYS before exposing the server",
		})
	} else {
		results = append(results, CheckResult{
			Name: "api_keys", Category: "config", Status: StatusPass,
			Message: fmt.Sprintf("%d key(s)", len(cfg.APIKeys)),
		})
	}
	return results
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", cfg.DataDir, err),
			Fix:     "Ensure directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s not writable: %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

// checkDetectors compiles the recognizers for every language and runs a
// smoke detection through each.
func checkDetectors(ctx context.Context, cfg *config.Config) []CheckResult {
	var results []CheckResult

	if cfg.PatternFile != "" {
		rf, err := classifier.LoadRecognizerFile(cfg.PatternFile)
		if err != nil {
			return []CheckResult{{
				Name: "pattern_file", Category: "detector", Status: StatusFail,
				Message: err.Error(),
				Fix:     "Fix or unset " + config.EnvPrefix + "_PATTERN_FILE",
			}}
		}
		if rf == nil {
			results = append(results, CheckResult{
				Name: "pattern_file", Category: "detector", Status: StatusWarn,
				Message: cfg.PatternFile + " not found, using embedded recognizers only",
			})
		} else {
			results = append(results, CheckResult{
				Name: "pattern_file", Category: "detector", Status: StatusPass,
				Message: fmt.Sprintf("%s (%d recognizers)", cfg.PatternFile, len(rf.Recognizers)),
			})
		}
	}

	for _, lang := range entity.LanguageCodes() {
		name := "detector_" + lang
		d, err := classifier.NewDetector(
			classifier.WithLanguage(lang),
			classifier.WithPatternFile(cfg.PatternFile),
		)
		if err != nil {
			results = append(results, CheckResult{
				Name: name, Category: "detector", Status: StatusFail, Message: err.Error(),
			})
			continue
		}
		spans, err := d.Analyze(ctx, smokeText)
		if err != nil || !hasType(spans, entity.EmailAddress) {
			results = append(results, CheckResult{
				Name: name, Category: "detector", Status: StatusFail,
				Message: fmt.Sprintf("%d patterns, smoke detection failed", d.Patterns()),
				Fix:     "Check EMAIL_ADDRESS recognizers in the pattern file",
			})
			continue
		}
		results = append(results, CheckResult{
			Name: name, Category: "detector", Status: StatusPass,
			Message: fmt.Sprintf("%d patterns", d.Patterns()),
		})
	}
	return results
}

func hasType(spans []entity.Span, t string) bool {
	for _, s := range spans {
		if s.Type == t {
			return true
		}
	}
	return false
}

func checkStorage(ctx context.Context, cfg *config.Config, opts Options) []CheckResult {
	var results []CheckResult

	if cfg.LedgerEnabled {
		results = append(results, checkLedger(ctx, cfg))
	} else {
		results = append(results, CheckResult{
			Name: "ledger_db", Category: "storage", Status: StatusWarn,
			Message: "Ledger disabled: runs are not recorded",
			Fix:     "Set " + config.EnvPrefix + "_LEDGER=true to keep a signed record of runs",
		})
	}

	switch {
	case cfg.ArtifactSink != config.SinkS3:
		results = append(results, CheckResult{
			Name: "artifact_sink", Category: "storage", Status: StatusPass,
			Message: "file (beside each output document)",
		})
	case opts.SkipRemote:
		results = append(results, CheckResult{
			Name: "artifact_sink", Category: "storage", Status: StatusPass,
			Message: fmt.Sprintf("s3://%s/%s (credentials not checked)", cfg.S3Bucket, cfg.S3Prefix),
		})
	default:
		results = append(results, checkS3(ctx, cfg))
	}
	return results
}

func checkLedger(ctx context.Context, cfg *config.Config) CheckResult {
	store, err := ledger.NewStore(cfg.LedgerDBPath(), cfg.SigningKey)
	if err != nil {
		return CheckResult{
			Name: "ledger_db", Category: "storage", Status: StatusFail,
			Message: err.Error(),
		}
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	count, err := store.Count(ctx)
	if err != nil {
		return CheckResult{
			Name: "ledger_db", Category: "storage", Status: StatusFail,
			Message: err.Error(),
		}
	}
	sizeStr := "unknown"
	if fi, statErr := os.Stat(cfg.LedgerDBPath()); statErr == nil {
		sizeStr = fmt.Sprintf("%.1f MB", float64(fi.Size())/(1024*1024))
	}
	return CheckResult{
		Name: "ledger_db", Category: "storage", Status: StatusPass,
		Message: fmt.Sprintf("%s (%d runs, %s)", cfg.LedgerDBPath(), count, sizeStr),
	}
}

func checkS3(ctx context.Context, cfg *config.Config) CheckResult {
	location := fmt.Sprintf("s3://%s/%s", cfg.S3Bucket, cfg.S3Prefix)
	client, err := artifact.NewS3Client(ctx, cfg.AWSRegion)
	if err != nil {
		return CheckResult{
			Name: "artifact_sink", Category: "storage", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", location, err),
		}
	}
	o := client.Options()
	if o.Credentials == nil {
		return CheckResult{
			Name: "artifact_sink", Category: "storage", Status: StatusFail,
			Message: location + ": no AWS credentials found",
			Fix:     "Configure AWS_PROFILE or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY",
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := o.Credentials.Retrieve(ctx); err != nil {
		return CheckResult{
			Name: "artifact_sink", Category: "storage", Status: StatusFail,
			Message: fmt.Sprintf("%s: resolving AWS credentials: %v", location, err),
			Fix:     "Configure AWS_PROFILE or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY",
		}
	}
	if o.Region == "" {
		return CheckResult{
			Name: "artifact_sink", Category: "storage", Status: StatusWarn,
			Message: location + ": no AWS region configured",
			Fix:     "Set " + config.EnvPrefix + "_AWS_REGION or AWS_REGION",
		}
	}
	return CheckResult{
		Name: "artifact_sink", Category: "storage", Status: StatusPass,
		Message: fmt.Sprintf("%s (region %s)", location, o.Region),
	}
}
