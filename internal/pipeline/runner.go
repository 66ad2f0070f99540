// Package pipeline runs anonymization over documents: it resolves output and
// artifact paths, reads the document, runs an engine session, then writes
// the anonymized document, the mapping and excluded-entities records and a
// ledger row. A cancelled session writes nothing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
	"github.com/alacambra/presidio-anonymization/internal/artifact"
	"github.com/alacambra/presidio-anonymization/internal/document"
	"github.com/alacambra/presidio-anonymization/internal/ledger"
	anonotel "github.com/alacambra/presidio-anonymization/internal/otel"
)

// Ledger sources.
const (
	SourceFile  = "file"
	SourceBatch = "batch"
	SourceText  = "text"
	SourceHTTP  = "http"
)

// Runner ties an engine to document I/O, artifact storage and the ledger.
type Runner struct {
	engine   *anonymizer.Engine
	docs     *document.Registry
	sink     artifact.Sink
	recorder *ledger.Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink stores artifacts somewhere other than beside the output document.
func WithSink(s artifact.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithRecorder records every completed run in the ledger.
func WithRecorder(rec *ledger.Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// NewRunner creates a runner. Artifacts go to the filesystem unless a sink is
// given; no ledger rows are written unless a recorder is given.
func NewRunner(engine *anonymizer.Engine, docs *document.Registry, opts ...Option) *Runner {
	r := &Runner{engine: engine, docs: docs, sink: artifact.FileSink{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Engine returns the engine behind the runner.
func (r *Runner) Engine() *anonymizer.Engine { return r.engine }

// Documents returns the document registry behind the runner.
func (r *Runner) Documents() *document.Registry { return r.docs }

// FileResult describes one processed document.
type FileResult struct {
	Paths     Paths
	Cancelled bool

	MappingLocation  string
	ExcludedLocation string // empty when nothing was excluded

	Result *anonymizer.Result
	Run    *ledger.Run // nil when the ledger is disabled or the run was cancelled
}

// ProcessFile anonymizes input with every accepted span kept. An empty
// output selects the default "<stem>.anonym<ext>" name.
func (r *Runner) ProcessFile(ctx context.Context, input, output string) (*FileResult, error) {
	return r.process(ctx, SourceFile, input, output, nil)
}

// ProcessFileWithSelection anonymizes input keeping only the spans chosen by
// selector. When the selector cancels, the result is marked cancelled and no
// file, artifact or ledger row is written.
func (r *Runner) ProcessFileWithSelection(ctx context.Context, input, output string, selector anonymizer.Selector) (*FileResult, error) {
	return r.process(ctx, SourceFile, input, output, selector)
}

func (r *Runner) process(ctx context.Context, source, input, output string, selector anonymizer.Selector) (*FileResult, error) {
	start := time.Now()
	paths := ResolvePaths(input, output)

	if _, err := r.docs.Handler(input); err != nil {
		return nil, err
	}

	text, err := r.docs.Read(ctx, input)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("input", paths.Input).
		Str("output", paths.Output).
		Func(anonotel.LogTraceFields(ctx)).
		Msg("anonymizing file")

	res, err := r.engine.Process(ctx, filepath.Base(input), text, selector)
	if err != nil {
		return nil, fmt.Errorf("anonymizing %s: %w", input, err)
	}
	if res.Cancelled {
		return &FileResult{Paths: paths, Cancelled: true, Result: res}, nil
	}

	if err := r.docs.Write(ctx, paths.Output, res.AnonymizedText); err != nil {
		return nil, err
	}

	fr := &FileResult{Paths: paths, Result: res}
	fr.MappingLocation, err = r.sink.Put(ctx, paths.Mapping, res.Mapping)
	if err != nil {
		return nil, fmt.Errorf("storing mapping: %w", err)
	}
	if !res.Excluded.Empty() {
		fr.ExcludedLocation, err = r.sink.Put(ctx, paths.Excluded, res.Excluded)
		if err != nil {
			return nil, fmt.Errorf("storing excluded entities: %w", err)
		}
	} else if rm, ok := r.sink.(artifact.Remover); ok {
		// An earlier run may have left an excluded record for this output.
		if err := rm.Remove(ctx, paths.Excluded); err != nil {
			return nil, fmt.Errorf("removing stale excluded entities: %w", err)
		}
	}

	fr.Run, err = r.record(ctx, ledger.RecordParams{
		Source:    source,
		Output:    paths.Output,
		InputText: text,
		Result:    res,
		Artifacts: ledger.Artifacts{Mapping: fr.MappingLocation, Excluded: fr.ExcludedLocation},
		Duration:  time.Since(start),
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("output", paths.Output).
		Str("mapping", fr.MappingLocation).
		Int("placeholders", len(res.Mappings)).
		Int("excluded", len(res.Excluded.Entities)).
		Dur("duration", time.Since(start)).
		Msg("file anonymized")
	return fr, nil
}

// ProcessText anonymizes an in-memory text. name labels the records; no
// document or artifact is written, but a completed run is still recorded in
// the ledger under source.
func (r *Runner) ProcessText(ctx context.Context, source, name, text string, selector anonymizer.Selector) (*anonymizer.Result, *ledger.Run, error) {
	start := time.Now()
	res, err := r.engine.Process(ctx, name, text, selector)
	if err != nil {
		return nil, nil, err
	}
	run, err := r.record(ctx, ledger.RecordParams{
		Source:    source,
		InputText: text,
		Result:    res,
		Duration:  time.Since(start),
	})
	if err != nil {
		return nil, nil, err
	}
	return res, run, nil
}

func (r *Runner) record(ctx context.Context, p ledger.RecordParams) (*ledger.Run, error) {
	if r.recorder == nil {
		return nil, nil
	}
	run, err := r.recorder.Record(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return run, nil
}

// BatchOptions controls ProcessBatch.
type BatchOptions struct {
	// OutputDir receives every output document; empty writes each one
	// beside its input.
	OutputDir string
	// ContinueOnError records per-document failures and keeps going instead
	// of stopping at the first one.
	ContinueOnError bool
}

// BatchItem is the outcome for one batch input.
type BatchItem struct {
	Input  string
	Result *FileResult
	Err    error
}

// BatchResult collects the outcome of ProcessBatch in input order.
type BatchResult struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
}

// Errors returns the per-document errors joined, or nil.
func (b *BatchResult) Errors() error {
	var errs []error
	for _, it := range b.Items {
		if it.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", it.Input, it.Err))
		}
	}
	return errors.Join(errs...)
}

// ErrOutputConflict is returned by ProcessBatch when two inputs would write
// the same output document or artifact.
var ErrOutputConflict = errors.New("inputs resolve to the same output")

// ProcessBatch anonymizes inputs one after another, each with its own
// session. By default the first failure stops the batch and is returned
// along with the items processed so far. Inputs whose outputs collide are
// rejected with ErrOutputConflict before anything is processed.
func (r *Runner) ProcessBatch(ctx context.Context, inputs []string, opts BatchOptions) (*BatchResult, error) {
	br := &BatchResult{Items: make([]BatchItem, 0, len(inputs))}
	outputs, err := batchOutputs(inputs, opts.OutputDir)
	if err != nil {
		return br, err
	}
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			return br, err
		}

		fr, err := r.process(ctx, SourceBatch, input, outputs[i], nil)
		br.Items = append(br.Items, BatchItem{Input: input, Result: fr, Err: err})
		if err != nil {
			br.Failed++
			log.Error().Err(err).Str("input", input).Msg("batch document failed")
			if !opts.ContinueOnError {
				return br, fmt.Errorf("processing %s: %w", input, err)
			}
			continue
		}
		br.Succeeded++
	}

	log.Info().
		Int("documents", len(inputs)).
		Int("succeeded", br.Succeeded).
		Int("failed", br.Failed).
		Msg("batch complete")
	return br, nil
}

// batchOutputs returns the output argument for every input and fails when
// two inputs would share an output document or artifact path.
func batchOutputs(inputs []string, outputDir string) ([]string, error) {
	outputs := make([]string, len(inputs))
	owners := make(map[string]string, 3*len(inputs))
	for i, input := range inputs {
		if outputDir != "" {
			outputs[i] = filepath.Join(outputDir, filepath.Base(DefaultOutput(input)))
		}
		paths := ResolvePaths(input, outputs[i])
		for _, p := range []string{paths.Output, paths.Mapping, paths.Excluded} {
			key := filepath.Clean(p)
			if abs, err := filepath.Abs(p); err == nil {
				key = abs
			}
			if prev, ok := owners[key]; ok && prev != input {
				return nil, fmt.Errorf("%w: %s and %s both write %s", ErrOutputConflict, prev, input, p)
			} else if ok {
				return nil, fmt.Errorf("%w: %s is listed twice", ErrOutputConflict, input)
			}
			owners[key] = input
		}
	}
	return outputs, nil
}

// ExpandInputs turns files and directories into a sorted list of documents
// the registry can read. Directories are scanned one level deep, skipping
// unsupported files and outputs of earlier runs. Files named explicitly are
// kept as given so unsupported ones fail loudly when processed.
func (r *Runner) ExpandInputs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			p := filepath.Join(arg, e.Name())
			if r.docs.Supported(p) && !IsAnonymized(p) {
				found = append(found, p)
			}
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
