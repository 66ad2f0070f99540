// Package classifier detects PII entities with Presidio-format recognizers:
// regex patterns with optional checksum gates, deny lists, and per-language
// context words that raise a match's score.
package classifier

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alacambra/presidio-anonymization/internal/entity"
	anonotel "github.com/alacambra/presidio-anonymization/internal/otel"
)

var tracer = anonotel.Tracer("github.com/alacambra/presidio-anonymization/internal/classifier")

const (
	// ContextSimilarityFactor is the score boost applied when context words are
	// found near a match. Matches Presidio's default context_similarity_factor.
	ContextSimilarityFactor = 0.35

	// ContextWindowChars is the number of bytes to search before and after a
	// match when looking for context words.
	ContextWindowChars = 100

	// ValidatedScore is reported for matches that pass a checksum gate.
	ValidatedScore = 1.0
)

// Detector finds entity spans in text for one language. It reports every
// match with its score; thresholds are applied by the caller. A Detector is
// immutable after construction and safe for concurrent use.
type Detector struct {
	language string
	patterns []PIIPattern
}

// DetectorOption configures a Detector via the functional options pattern.
type DetectorOption func(*detectorConfig)

type detectorConfig struct {
	language          string
	patternFile       string
	entities          []string
	customRecognizers []RecognizerConfig
}

// WithLanguage selects the recognizers and context words for language.
func WithLanguage(language string) DetectorOption {
	return func(c *detectorConfig) { c.language = language }
}

// WithPatternFile loads additional recognizers from a YAML file layered over
// the embedded defaults. If the file does not exist, it is silently skipped.
func WithPatternFile(path string) DetectorOption {
	return func(c *detectorConfig) { c.patternFile = path }
}

// WithEntities restricts detection to the listed entity types.
func WithEntities(entities []string) DetectorOption {
	return func(c *detectorConfig) { c.entities = entities }
}

// WithCustomRecognizers adds recognizer definitions as the last layer.
func WithCustomRecognizers(recognizers []RecognizerConfig) DetectorOption {
	return func(c *detectorConfig) { c.customRecognizers = recognizers }
}

// NewDetector builds a Detector. Without options it uses the embedded
// defaults for the default language and every entity type.
func NewDetector(opts ...DetectorOption) (*Detector, error) {
	var cfg detectorConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.language == "" {
		cfg.language = entity.DefaultLanguage
	}

	// Layer 1: embedded defaults
	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, fmt.Errorf("loading default recognizers: %w", err)
	}

	// Layer 2: pattern file (optional)
	var fileRecs []*RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading pattern file: %w", err)
		}
		if rf != nil {
			fileRecs = toPtrSlice(rf.Recognizers)
		}
	}

	// Layer 3: programmatic recognizers
	var customRecs []*RecognizerConfig
	if len(cfg.customRecognizers) > 0 {
		customRecs = toPtrSlice(cfg.customRecognizers)
	}

	merged := MergeRecognizers(toPtrSlice(defaults), fileRecs, customRecs)
	merged = FilterByEntities(merged, cfg.entities)

	compiled, err := CompilePIIPatterns(merged, cfg.language)
	if err != nil {
		return nil, fmt.Errorf("compiling patterns: %w", err)
	}
	return &Detector{language: cfg.language, patterns: compiled}, nil
}

// MustNewDetector is like NewDetector but panics on error. Useful where the
// embedded defaults are expected to always compile.
func MustNewDetector(opts ...DetectorOption) *Detector {
	d, err := NewDetector(opts...)
	if err != nil {
		panic(fmt.Sprintf("classifier.NewDetector: %v", err))
	}
	return d
}

// NewFactory returns a detector factory for the session pool. The language
// and entity filter come from the session options; opts add shared settings
// such as a pattern file.
func NewFactory(opts ...DetectorOption) func(entity.Options) (entity.Detector, error) {
	return func(o entity.Options) (entity.Detector, error) {
		all := append(slices.Clone(opts), WithLanguage(o.Language()), WithEntities(o.Entities()))
		d, err := NewDetector(all...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Language returns the language the detector was built for.
func (d *Detector) Language() string { return d.language }

// Patterns returns the number of compiled patterns.
func (d *Detector) Patterns() int { return len(d.patterns) }

type matchKey struct {
	typ        string
	start, end int
}

type rawMatch struct {
	typ        string
	start, end int
	score      float64
}

// Analyze returns every match in text as spans with code-point offsets,
// ordered by start. When several patterns match the same range for the same
// type, the highest score is kept.
func (d *Detector) Analyze(ctx context.Context, text string) ([]entity.Span, error) {
	ctx, span := tracer.Start(ctx, "detector.analyze")
	defer span.End()

	best := make(map[matchKey]int)
	var matches []rawMatch

	for _, p := range d.patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range p.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*p.Group], m[2*p.Group+1]
			if start < 0 || start == end {
				continue
			}
			if p.WordBounded && !wordBounded(text, start, end) {
				continue
			}
			value := text[start:end]

			score := p.Score
			if p.Validation != "" {
				if !validate(p.Validation, value) {
					continue
				}
				score = ValidatedScore
			} else {
				score = enhanceScoreWithContext(text, start, end, score, p.ContextWords)
			}

			key := matchKey{p.Type, start, end}
			if i, ok := best[key]; ok {
				if score > matches[i].score {
					matches[i].score = score
				}
				continue
			}
			best[key] = len(matches)
			matches = append(matches, rawMatch{typ: p.Type, start: start, end: end, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].end < matches[j].end
	})

	spans := make([]entity.Span, 0, len(matches))
	bytePos, runePos := 0, 0
	for _, m := range matches {
		runePos += utf8.RuneCountInString(text[bytePos:m.start])
		bytePos = m.start
		spans = append(spans, entity.Span{
			Type:  m.typ,
			Text:  text[m.start:m.end],
			Start: runePos,
			End:   runePos + utf8.RuneCountInString(text[m.start:m.end]),
			Score: m.score,
		})
	}

	span.SetAttributes(
		attribute.String("pii.language", d.language),
		attribute.Int("pii.entity_count", len(spans)),
	)
	return spans, nil
}

// enhanceScoreWithContext boosts a match's base score if a context word
// appears within ContextWindowChars of the match. The result is capped at 1.0.
func enhanceScoreWithContext(text string, start, end int, baseScore float64, contextWords []string) float64 {
	if len(contextWords) == 0 {
		return baseScore
	}
	lo := max(start-ContextWindowChars, 0)
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := min(end+ContextWindowChars, len(text))
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	window := strings.ToLower(text[lo:start]) + " " + strings.ToLower(text[end:hi])

	for _, cw := range contextWords {
		if containsWord(window, strings.ToLower(cw)) {
			return min(baseScore+ContextSimilarityFactor, 1.0)
		}
	}
	return baseScore
}

// containsWord reports whether word occurs in s with word boundaries on
// both sides.
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		if wordBounded(s, start, start+len(word)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

// wordBounded reports whether s[start:end] is not glued to a letter, digit
// or underscore on either side.
func wordBounded(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
