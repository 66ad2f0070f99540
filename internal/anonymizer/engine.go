// Package anonymizer is the placeholder substitution and reconciliation
// core: it gates detections by confidence, lets a caller choose which spans
// to keep, resolves overlaps, rewrites the text with typed placeholders and
// builds the mapping and excluded-entities records.
package anonymizer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alacambra/presidio-anonymization/internal/entity"
	anonotel "github.com/alacambra/presidio-anonymization/internal/otel"
)

var tracer = anonotel.Tracer("github.com/alacambra/presidio-anonymization/internal/anonymizer")

// Engine runs anonymization sessions for one immutable configuration.
// Engines are cheap; the detector behind them comes from a shared Pool.
// Each call to Process owns a fresh Mapper, so no placeholder state leaks
// between documents.
type Engine struct {
	opts entity.Options
	pool *Pool
	now  func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine for opts backed by pool.
func NewEngine(opts entity.Options, pool *Pool, options ...EngineOption) *Engine {
	e := &Engine{opts: opts, pool: pool, now: time.Now}
	for _, o := range options {
		o(e)
	}
	return e
}

// Options returns the engine configuration.
func (e *Engine) Options() entity.Options { return e.opts }

// Result is the outcome of one anonymization session.
type Result struct {
	Document  string
	Cancelled bool

	AnonymizedText string

	Accepted    []entity.Span // score >= threshold
	Rejected    []entity.Span // score < threshold
	Kept        []entity.Span // accepted and selected, after overlap resolution
	Deselected  []entity.Span // accepted but not selected
	Overlapping []entity.Span // selected but dropped by overlap resolution

	Mappings map[string]MappingEntry
	Mapping  *MappingRecord  // nil when cancelled
	Excluded *ExcludedRecord // nil when cancelled
}

// Analyze runs the detector and the confidence gate. Every span gets a Seq in
// ascending start order before gating, so Seq values are unique across the
// accepted and rejected sets.
func (e *Engine) Analyze(ctx context.Context, text string) (accepted, rejected []entity.Span, err error) {
	if err := entity.ValidateText(text); err != nil {
		return nil, nil, err
	}
	detector, err := e.pool.Get(e.opts)
	if err != nil {
		return nil, nil, err
	}

	spans, err := detector.Analyze(ctx, text)
	if err != nil {
		return nil, nil, fmt.Errorf("detecting entities: %w", err)
	}

	runes := []rune(text)
	for _, s := range spans {
		if !e.opts.Allows(s.Type) {
			return nil, nil, fmt.Errorf("%w: detector returned %s", entity.ErrUnsupportedEntity, s.Type)
		}
		if err := s.Validate(runes); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSpan, err)
		}
	}

	accepted, rejected = Split(entity.Sequence(spans), e.opts.MinConfidence())
	return accepted, rejected, nil
}

// Process runs a full session over text: detect, gate, select, resolve
// overlaps, substitute and build both records. A nil selector keeps every
// accepted span. When the selector cancels, the result has Cancelled set and
// carries no text or records.
func (e *Engine) Process(ctx context.Context, document, text string, selector Selector) (*Result, error) {
	ctx, span := tracer.Start(ctx, "anonymizer.process",
		trace.WithAttributes(
			attribute.String("document", document),
			attribute.String("language", e.opts.Language()),
			attribute.Int("text.length", len(text)),
		))
	defer span.End()

	accepted, rejected, err := e.Analyze(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	log.Debug().
		Str("document", document).
		Int("above_threshold", len(accepted)).
		Int("below_threshold", len(rejected)).
		Func(anonotel.LogTraceFields(ctx)).
		Msg("detection complete")

	sel := KeepAll()
	if selector != nil {
		sel, err = selector.Select(ctx, text, accepted)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("selecting entities: %w", err)
		}
	}
	if sel.Cancelled() {
		log.Info().Str("document", document).Msg("anonymization cancelled by user")
		documentsCancelled.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("cancelled", true))
		return &Result{
			Document:  document,
			Cancelled: true,
			Accepted:  accepted,
			Rejected:  rejected,
		}, nil
	}

	result, err := e.apply(document, text, accepted, rejected, sel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "substitution failed")
		return nil, err
	}

	recordSessionMetrics(ctx, result)
	span.SetAttributes(
		attribute.Int("entities.kept", len(result.Kept)),
		attribute.Int("entities.excluded", len(result.Excluded.Entities)),
		attribute.Int("mappings", len(result.Mappings)),
	)
	log.Info().
		Str("document", document).
		Int("selected", len(result.Kept)).
		Int("deselected", len(result.Deselected)).
		Int("overlapping", len(result.Overlapping)).
		Int("placeholders", len(result.Mappings)).
		Func(anonotel.LogTraceFields(ctx)).
		Msg("text anonymized")

	return result, nil
}

// apply reconciles the selection and performs the substitution. It builds
// nothing persistent; the caller decides where the records go.
func (e *Engine) apply(document, text string, accepted, rejected []entity.Span, sel Selection) (*Result, error) {
	selected, deselected, err := Reconcile(accepted, sel)
	if err != nil {
		return nil, err
	}
	kept, overlapping := ResolveOverlaps(selected)

	anonymized, mappings, err := Anonymize(text, kept, NewMapper())
	if err != nil {
		return nil, err
	}

	header := RecordHeader{
		Document:      document,
		Timestamp:     e.now(),
		Language:      e.opts.Language(),
		MinConfidence: e.opts.MinConfidence(),
	}
	excluded := NewExcludedRecord(header).
		AddBelowThreshold(rejected).
		AddDeselected(deselected).
		AddOverlapping(overlapping)

	return &Result{
		Document:       document,
		AnonymizedText: anonymized,
		Accepted:       accepted,
		Rejected:       rejected,
		Kept:           kept,
		Deselected:     deselected,
		Overlapping:    overlapping,
		Mappings:       mappings,
		Mapping:        NewMappingRecord(header, mappings),
		Excluded:       excluded,
	}, nil
}
