package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
	"github.com/alacambra/presidio-anonymization/internal/artifact"
	"github.com/alacambra/presidio-anonymization/internal/classifier"
	"github.com/alacambra/presidio-anonymization/internal/config"
	"github.com/alacambra/presidio-anonymization/internal/document"
	"github.com/alacambra/presidio-anonymization/internal/entity"
	"github.com/alacambra/presidio-anonymization/internal/ledger"
	"github.com/alacambra/presidio-anonymization/internal/pipeline"
)

// app bundles everything a command needs to anonymize or restore documents.
type app struct {
	cfg    *config.Config
	opts   entity.Options
	pool   *anonymizer.Pool
	docs   *document.Registry
	runner *pipeline.Runner
	s3     artifact.Source // nil unless the S3 sink is configured
	ledger *ledger.Store   // nil when the ledger is disabled
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.WarnIfDefaultKeys()

	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:  cfg,
		opts: opts,
		pool: anonymizer.NewPool(classifier.NewFactory(classifier.WithPatternFile(cfg.PatternFile))),
		docs: document.NewRegistry(
			document.WithMaxSizeMB(cfg.MaxDocumentMB),
			document.WithNormalize(cfg.NormalizeUnicode),
		),
	}

	var runnerOpts []pipeline.Option
	if cfg.ArtifactSink == config.SinkS3 {
		client, err := artifact.NewS3Client(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		sink := artifact.NewS3Sink(client, cfg.S3Bucket, cfg.S3Prefix)
		a.s3 = sink
		runnerOpts = append(runnerOpts, pipeline.WithSink(sink))
	}

	a.ledger, err = openLedger(cfg)
	if err != nil {
		return nil, err
	}
	if a.ledger != nil {
		runnerOpts = append(runnerOpts, pipeline.WithRecorder(ledger.NewRecorder(a.ledger)))
	}

	a.runner = pipeline.NewRunner(anonymizer.NewEngine(opts, a.pool), a.docs, runnerOpts...)
	log.Debug().
		Str("language", opts.Language()).
		Float64("min_confidence", opts.MinConfidence()).
		Strs("entities", opts.Entities()).
		Str("sink", cfg.ArtifactSink).
		Bool("ledger", a.ledger != nil).
		Msg("anonymizer ready")
	return a, nil
}

// openLedger opens the run ledger, or returns nil when it is disabled.
func openLedger(cfg *config.Config) (*ledger.Store, error) {
	if !cfg.LedgerEnabled {
		return nil, nil
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := ledger.NewStore(cfg.LedgerDBPath(), cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("initializing ledger: %w", err)
	}
	return store, nil
}

// loadMapping reads a mapping record from a local path or an s3:// URL.
func (a *app) loadMapping(ctx context.Context, location string) (*anonymizer.MappingRecord, error) {
	src, err := artifact.SourceFor(location, a.s3)
	if err != nil {
		return nil, err
	}
	return artifact.LoadMapping(ctx, src, location)
}

func (a *app) loadExcluded(ctx context.Context, location string) (*anonymizer.ExcludedRecord, error) {
	src, err := artifact.SourceFor(location, a.s3)
	if err != nil {
		return nil, err
	}
	return artifact.LoadExcluded(ctx, src, location)
}

func (a *app) Close() error {
	if a.ledger == nil {
		return nil
	}
	if err := a.ledger.Close(); err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}
	return nil
}
