package testutil

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// StaticDetector returns scripted spans. Spans come either from a fixed list
// or from Rules applied to the analyzed text.
type StaticDetector struct {
	Spans []entity.Span
	Rules []Rule
	Err   error

	calls atomic.Int64
}

// Rule flags every occurrence of Value as Type with Score.
type Rule struct {
	Type  string
	Value string
	Score float64
}

// Analyze implements entity.Detector.
func (d *StaticDetector) Analyze(_ context.Context, text string) ([]entity.Span, error) {
	d.calls.Add(1)
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]entity.Span, 0, len(d.Spans))
	out = append(out, d.Spans...)
	for _, r := range d.Rules {
		out = append(out, Find(text, r.Type, r.Value, r.Score)...)
	}
	return out, nil
}

// Calls returns how many times Analyze ran.
func (d *StaticDetector) Calls() int { return int(d.calls.Load()) }

// Find returns a span for every occurrence of value in text, with code point
// offsets.
func Find(text, entityType, value string, score float64) []entity.Span {
	var spans []entity.Span
	offset := 0
	for {
		i := strings.Index(text[offset:], value)
		if i < 0 {
			return spans
		}
		byteStart := offset + i
		start, end := entity.RuneOffsets(text, byteStart, byteStart+len(value))
		spans = append(spans, entity.Span{Type: entityType, Text: value, Start: start, End: end, Score: score})
		offset = byteStart + len(value)
	}
}
