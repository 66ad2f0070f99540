package anonymizer

import (
	"strings"
	"time"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// RecordHeader carries the fields shared by both artifact records.
type RecordHeader struct {
	Document      string    `json:"document"`
	Timestamp     time.Time `json:"timestamp"`
	Language      string    `json:"language"`
	MinConfidence float64   `json:"min_confidence_score"`
}

// MappingRecord reverses placeholders back to original values. Anyone holding
// it can de-anonymize the document.
type MappingRecord struct {
	RecordHeader
	Mappings map[string]MappingEntry `json:"mappings"`
}

// ExcludedEntity is a detection that was deliberately left in the text.
type ExcludedEntity struct {
	Text       string  `json:"text"`
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// ExcludedRecord lists detections that were not anonymized, with a note
// explaining why.
type ExcludedRecord struct {
	RecordHeader
	Note     string           `json:"note"`
	Entities []ExcludedEntity `json:"entities"`

	reasons []string
}

const (
	noteBelowThreshold = "detected but NOT anonymized due to scores below threshold"
	noteDeselected     = "deselected by the user and NOT anonymized"
	noteOverlapping    = "NOT anonymized because a higher-scoring overlapping entity was replaced"
)

// NewMappingRecord builds a mapping record. A nil mapping is stored as an
// empty object.
func NewMappingRecord(h RecordHeader, mappings map[string]MappingEntry) *MappingRecord {
	if mappings == nil {
		mappings = map[string]MappingEntry{}
	}
	h.Timestamp = h.Timestamp.UTC()
	return &MappingRecord{RecordHeader: h, Mappings: mappings}
}

// NewExcludedRecord starts an empty excluded-entities record.
func NewExcludedRecord(h RecordHeader) *ExcludedRecord {
	h.Timestamp = h.Timestamp.UTC()
	return &ExcludedRecord{RecordHeader: h, Entities: []ExcludedEntity{}}
}

// AddBelowThreshold appends spans rejected by the confidence gate.
func (r *ExcludedRecord) AddBelowThreshold(spans []entity.Span) *ExcludedRecord {
	return r.add(noteBelowThreshold, spans)
}

// AddDeselected appends accepted spans the caller chose not to anonymize.
func (r *ExcludedRecord) AddDeselected(spans []entity.Span) *ExcludedRecord {
	return r.add(noteDeselected, spans)
}

// AddOverlapping appends spans dropped by overlap resolution.
func (r *ExcludedRecord) AddOverlapping(spans []entity.Span) *ExcludedRecord {
	return r.add(noteOverlapping, spans)
}

func (r *ExcludedRecord) add(reason string, spans []entity.Span) *ExcludedRecord {
	if len(spans) == 0 {
		return r
	}
	for _, s := range spans {
		r.Entities = append(r.Entities, ExcludedEntity{
			Text:       s.Text,
			EntityType: s.Type,
			Score:      RoundScore(s.Score),
			Start:      s.Start,
			End:        s.End,
		})
	}
	r.reasons = append(r.reasons, reason)
	r.Note = "These entities were " + strings.Join(r.reasons, "; or ")
	return r
}

// Empty reports whether the record lists no entities.
func (r *ExcludedRecord) Empty() bool { return len(r.Entities) == 0 }
