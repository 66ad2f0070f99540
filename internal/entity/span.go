// Package entity defines the detected-span data model shared by the detector,
// the anonymization core and the front ends, together with the read-only
// catalog of supported languages and entity types.
package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

// ErrInvalidEncoding is returned for text that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("text is not valid UTF-8")

// ValidateText rejects text containing invalid UTF-8. Converting such text to
// code points would replace every bad byte with U+FFFD.
func ValidateText(text string) error {
	if utf8.ValidString(text) {
		return nil
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			return fmt.Errorf("%w: invalid byte 0x%02x at offset %d", ErrInvalidEncoding, text[i], i)
		}
		i += size
	}
	return ErrInvalidEncoding
}

// Span is a scored, positioned substring flagged as sensitive.
// Start and End are Unicode code point offsets into the analyzed text.
// Seq is the per-session detection index used to select spans by identity.
type Span struct {
	Type  string  `json:"entity_type"`
	Text  string  `json:"text"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
	Seq   int     `json:"seq"`
}

// Len returns the span length in code points.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether s and o share at least one code point.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Detector turns raw text into scored spans. Language and entity filters are
// fixed when the detector is built.
type Detector interface {
	Analyze(ctx context.Context, text string) ([]Span, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, text string) ([]Span, error)

// Analyze calls f.
func (f DetectorFunc) Analyze(ctx context.Context, text string) ([]Span, error) {
	return f(ctx, text)
}

// Sequence sorts spans by ascending start (stable) and assigns Seq in that
// order, starting at 0. The input slice is not modified.
func Sequence(spans []Span) []Span {
	out := make([]Span, len(spans))
	copy(out, spans)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		out[i].Seq = i
	}
	return out
}

// RuneOffsets converts a byte range of text into a code point range.
func RuneOffsets(text string, byteStart, byteEnd int) (start, end int) {
	start = utf8.RuneCountInString(text[:byteStart])
	end = start + utf8.RuneCountInString(text[byteStart:byteEnd])
	return start, end
}

// Validate checks the span against the text it was detected in. runes must
// be the code points of that text.
func (s Span) Validate(runes []rune) error {
	if s.Start < 0 || s.End > len(runes) || s.Start >= s.End {
		return fmt.Errorf("span %s [%d,%d) outside text of length %d", s.Type, s.Start, s.End, len(runes))
	}
	if string(runes[s.Start:s.End]) != s.Text {
		return fmt.Errorf("span %s [%d,%d) text does not match source", s.Type, s.Start, s.End)
	}
	if !ValidScore(s.Score) {
		return fmt.Errorf("span %s [%d,%d) score %.4f outside [0,1]", s.Type, s.Start, s.End, s.Score)
	}
	return nil
}

// ValidScore reports whether score is within [0,1]. NaN is not.
func ValidScore(score float64) bool {
	return score >= 0 && score <= 1
}
