package anonymizer

import (
	"fmt"
	"math"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// MappingEntry is the original value behind a placeholder. Text and Score
// come from the first occurrence seen in the session.
type MappingEntry struct {
	Text       string  `json:"text"`
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
}

// Mapper assigns stable placeholders to span values for one anonymization
// session. Equal (entity type, text) pairs always receive the same
// placeholder; counters are kept per entity type. A Mapper is owned by a
// single session and is not safe for concurrent use.
type Mapper struct {
	byValue  map[mapperKey]string
	entries  map[string]MappingEntry
	counters map[string]int
}

type mapperKey struct {
	entityType string
	text       string
}

// NewMapper returns an empty session mapper.
func NewMapper() *Mapper {
	return &Mapper{
		byValue:  make(map[mapperKey]string),
		entries:  make(map[string]MappingEntry),
		counters: make(map[string]int),
	}
}

// Placeholder returns the placeholder for span, creating one on first sight
// of its (type, text) value. Matching is exact and case-sensitive.
func (m *Mapper) Placeholder(span entity.Span) string {
	key := mapperKey{entityType: span.Type, text: span.Text}
	if p, ok := m.byValue[key]; ok {
		return p
	}

	m.counters[span.Type]++
	p := FormatPlaceholder(span.Type, m.counters[span.Type])
	m.byValue[key] = p
	m.entries[p] = MappingEntry{
		Text:       span.Text,
		EntityType: span.Type,
		Score:      RoundScore(span.Score),
	}
	return p
}

// Mappings returns a snapshot of every placeholder created so far.
func (m *Mapper) Mappings() map[string]MappingEntry {
	out := make(map[string]MappingEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of placeholders created.
func (m *Mapper) Len() int { return len(m.entries) }

// Reset clears all counters and lookups.
func (m *Mapper) Reset() {
	clear(m.byValue)
	clear(m.entries)
	clear(m.counters)
}

// FormatPlaceholder renders the placeholder token for the n-th value of
// entityType, e.g. <PERSON_1>.
func FormatPlaceholder(entityType string, n int) string {
	return fmt.Sprintf("<%s_%d>", entityType, n)
}

// RoundScore rounds a confidence score to four decimal places.
func RoundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}
