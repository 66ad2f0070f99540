package anonymizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))

func testHeader() RecordHeader {
	return RecordHeader{Document: "letter.txt", Timestamp: fixedTime, Language: "en", MinConfidence: 0.7}
}

func TestMappingRecord_JSONShape(t *testing.T) {
	rec := NewMappingRecord(testHeader(), map[string]MappingEntry{
		"<PERSON_1>": {Text: "John", EntityType: entity.Person, Score: 0.85},
	})

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "letter.txt", got["document"])
	assert.Equal(t, "2025-03-14T08:26:53Z", got["timestamp"], "timestamps are UTC")
	assert.Equal(t, "en", got["language"])
	assert.Equal(t, 0.7, got["min_confidence_score"])
	assert.Equal(t, map[string]any{
		"<PERSON_1>": map[string]any{"text": "John", "entity_type": "PERSON", "score": 0.85},
	}, got["mappings"])
}

func TestMappingRecord_NilMappingsEncodeAsObject(t *testing.T) {
	data, err := json.Marshal(NewMappingRecord(testHeader(), nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mappings":{}`)
}

func TestExcludedRecord_Paths(t *testing.T) {
	low := []entity.Span{{Type: entity.DateTime, Text: "May", Start: 3, End: 6, Score: 0.45678}}
	deselected := []entity.Span{{Type: entity.Person, Text: "Ann", Start: 10, End: 13, Score: 0.9}}

	rec := NewExcludedRecord(testHeader()).AddBelowThreshold(low).AddDeselected(deselected).AddOverlapping(nil)

	require.Len(t, rec.Entities, 2)
	assert.Equal(t, ExcludedEntity{Text: "May", EntityType: entity.DateTime, Score: 0.4568, Start: 3, End: 6}, rec.Entities[0])
	assert.Equal(t, "Ann", rec.Entities[1].Text)
	assert.Contains(t, rec.Note, "below threshold")
	assert.Contains(t, rec.Note, "deselected")
	assert.NotContains(t, rec.Note, "overlapping")
}

func TestExcludedRecord_BelowThresholdNote(t *testing.T) {
	rec := NewExcludedRecord(testHeader()).AddBelowThreshold([]entity.Span{{Type: entity.NRP, Text: "x", Start: 0, End: 1, Score: 0.1}})
	assert.Equal(t, "These entities were detected but NOT anonymized due to scores below threshold", rec.Note)
}

func TestExcludedRecord_EmptyJSON(t *testing.T) {
	rec := NewExcludedRecord(testHeader())
	assert.True(t, rec.Empty())

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []any{}, got["entities"])
	assert.Contains(t, got, "note")
	assert.Len(t, got, 6)
}
