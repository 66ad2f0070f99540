package anonymizer

import (
	"sort"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// Split partitions spans into accepted (score >= threshold) and rejected
// (score < threshold). Both results are ordered by ascending start; spans
// with equal starts keep their input order. The input slice is not modified.
func Split(spans []entity.Span, threshold float64) (accepted, rejected []entity.Span) {
	accepted = []entity.Span{}
	rejected = []entity.Span{}
	for _, s := range spans {
		if s.Score >= threshold {
			accepted = append(accepted, s)
		} else {
			rejected = append(rejected, s)
		}
	}
	sortByStart(accepted)
	sortByStart(rejected)
	return accepted, rejected
}

func sortByStart(spans []entity.Span) {
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
}
