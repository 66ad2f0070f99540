package anonymizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// ErrUnknownSelection is returned when a selection names a span that is not
// among the accepted spans.
var ErrUnknownSelection = errors.New("selection references unknown span")

// Selection is a caller's choice of which accepted spans to anonymize.
// Spans are chosen by Seq, never by value, so two textually identical
// detections at different offsets are independent choices.
type Selection struct {
	all       bool
	cancelled bool
	keep      []int
}

// KeepAll selects every accepted span.
func KeepAll() Selection { return Selection{all: true} }

// Keep selects exactly the accepted spans with the given Seq values.
// Keep() with no arguments is a valid selection that anonymizes nothing.
func Keep(seqs ...int) Selection {
	keep := make([]int, len(seqs))
	copy(keep, seqs)
	return Selection{keep: keep}
}

// Cancel aborts the session: nothing is anonymized and no artifacts are
// produced.
func Cancel() Selection { return Selection{cancelled: true} }

// Cancelled reports whether the selection aborts the session.
func (s Selection) Cancelled() bool { return s.cancelled }

// Selector asks a caller (terminal prompt, HTTP client, test) which accepted
// spans to keep. text is the full source text for context display.
type Selector interface {
	Select(ctx context.Context, text string, accepted []entity.Span) (Selection, error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(ctx context.Context, text string, accepted []entity.Span) (Selection, error)

// Select calls f.
func (f SelectorFunc) Select(ctx context.Context, text string, accepted []entity.Span) (Selection, error) {
	return f(ctx, text, accepted)
}

// Reconcile splits accepted into the spans the selection keeps and the spans
// it excludes. kept and excluded are disjoint, together equal accepted, and
// are ordered by ascending start. A cancelled selection returns two empty
// slices; callers must check Cancelled before producing artifacts.
func Reconcile(accepted []entity.Span, sel Selection) (kept, excluded []entity.Span, err error) {
	kept = []entity.Span{}
	excluded = []entity.Span{}
	if sel.cancelled {
		return kept, excluded, nil
	}
	if sel.all {
		kept = append(kept, accepted...)
		sortByStart(kept)
		return kept, excluded, nil
	}

	known := make(map[int]bool, len(accepted))
	for _, s := range accepted {
		known[s.Seq] = true
	}
	chosen := make(map[int]bool, len(sel.keep))
	for _, seq := range sel.keep {
		if !known[seq] {
			return nil, nil, fmt.Errorf("%w: seq %d", ErrUnknownSelection, seq)
		}
		chosen[seq] = true
	}

	for _, s := range accepted {
		if chosen[s.Seq] {
			kept = append(kept, s)
		} else {
			excluded = append(excluded, s)
		}
	}
	sortByStart(kept)
	sortByStart(excluded)
	return kept, excluded, nil
}
