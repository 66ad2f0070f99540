package artifact

import (
	"sort"
	"strings"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
)

// Restore replaces every placeholder from mappings with its original text in
// a single pass, so restored values are never rescanned. Longer placeholders
// are tried first. It returns the restored text and the number of
// replacements made.
func Restore(text string, mappings map[string]anonymizer.MappingEntry) (string, int) {
	placeholders := make([]string, 0, len(mappings))
	for p := range mappings {
		if p != "" {
			placeholders = append(placeholders, p)
		}
	}
	sort.Slice(placeholders, func(i, j int) bool {
		if len(placeholders[i]) != len(placeholders[j]) {
			return len(placeholders[i]) > len(placeholders[j])
		}
		return placeholders[i] < placeholders[j]
	})

	pairs := make([]string, 0, 2*len(placeholders))
	count := 0
	for _, p := range placeholders {
		pairs = append(pairs, p, mappings[p].Text)
		count += strings.Count(text, p)
	}
	if len(pairs) == 0 {
		return text, 0
	}
	return strings.NewReplacer(pairs...).Replace(text), count
}
