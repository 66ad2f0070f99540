package anonymizer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

var (
	// ErrInvalidSpan is returned when a span does not fit the text it claims
	// to come from.
	ErrInvalidSpan = errors.New("invalid span")

	// ErrOverlappingSpans is returned by Anonymize when two spans share code
	// points. Use ResolveOverlaps before substitution.
	ErrOverlappingSpans = errors.New("overlapping spans")
)

// Anonymize replaces every span in text with the placeholder the mapper
// assigns to it and returns the rewritten text with a snapshot of the
// mapper's entries.
//
// All spans are validated before the mapper is consulted, so a failure
// leaves both the text and the mapper untouched. Spans are spliced from the
// highest start offset down so offsets of the spans still to be processed
// stay valid; placeholders are therefore numbered in that order too.
func Anonymize(text string, spans []entity.Span, mapper *Mapper) (string, map[string]MappingEntry, error) {
	if err := entity.ValidateText(text); err != nil {
		return "", nil, err
	}
	runes := []rune(text)
	if err := validateSpans(runes, spans); err != nil {
		return "", nil, err
	}

	ordered := make([]entity.Span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	result := runes
	for _, s := range ordered {
		placeholder := []rune(mapper.Placeholder(s))
		next := make([]rune, 0, len(result)-s.Len()+len(placeholder))
		next = append(next, result[:s.Start]...)
		next = append(next, placeholder...)
		next = append(next, result[s.End:]...)
		result = next
	}

	return string(result), mapper.Mappings(), nil
}

func validateSpans(runes []rune, spans []entity.Span) error {
	for _, s := range spans {
		if !validPlaceholderType(s.Type) {
			return fmt.Errorf("%w: entity type %q cannot form a placeholder", ErrInvalidSpan, s.Type)
		}
		if err := s.Validate(runes); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpan, err)
		}
	}

	byStart := make([]entity.Span, len(spans))
	copy(byStart, spans)
	sortByStart(byStart)
	for i := 1; i < len(byStart); i++ {
		prev, cur := byStart[i-1], byStart[i]
		if cur.Start < prev.End {
			return fmt.Errorf("%w: %s [%d,%d) and %s [%d,%d)", ErrOverlappingSpans,
				prev.Type, prev.Start, prev.End, cur.Type, cur.Start, cur.End)
		}
	}
	return nil
}

// validPlaceholderType reports whether t is uppercase letters, digits and
// underscores, starting with a letter.
func validPlaceholderType(t string) bool {
	if t == "" {
		return false
	}
	for i, c := range t {
		switch {
		case c >= 'A' && c <= 'Z':
		case i > 0 && (c == '_' || (c >= '0' && c <= '9')):
		default:
			return false
		}
	}
	return true
}
