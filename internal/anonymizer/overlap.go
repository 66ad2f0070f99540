package anonymizer

import (
	"sort"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// ResolveOverlaps keeps the best span of every cluster of mutually
// overlapping spans and returns the rest as dropped. The best span has the
// highest score; ties go to the longer span, then the earlier start, then the
// lower Seq. Spans that overlap nothing are always kept. Both results are
// ordered by ascending start.
//
// A cluster is resolved greedily: after the winner is chosen, any remaining
// span that does not touch a kept span survives, so two disjoint spans joined
// only through a dropped third span are both kept.
func ResolveOverlaps(spans []entity.Span) (kept, dropped []entity.Span) {
	kept = []entity.Span{}
	dropped = []entity.Span{}
	if len(spans) == 0 {
		return kept, dropped
	}

	ranked := make([]entity.Span, len(spans))
	copy(ranked, spans)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Seq < b.Seq
	})

	for _, s := range ranked {
		clash := false
		for _, k := range kept {
			if s.Overlaps(k) {
				clash = true
				break
			}
		}
		if clash {
			dropped = append(dropped, s)
		} else {
			kept = append(kept, s)
		}
	}

	sortByStart(kept)
	sortByStart(dropped)
	return kept, dropped
}
