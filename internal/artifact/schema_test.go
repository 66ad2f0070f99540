package artifact

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
	"github.com/alacambra/presidio-anonymization/internal/entity"
)

var header = anonymizer.RecordHeader{
	Document:      "letter.txt",
	Timestamp:     time.Date(2025, 3, 14, 8, 26, 53, 0, time.UTC),
	Language:      "en",
	MinConfidence: 0.7,
}

func TestValidateMappingAcceptsEncodedRecord(t *testing.T) {
	rec := anonymizer.NewMappingRecord(header, map[string]anonymizer.MappingEntry{
		"<PERSON_1>":        {Text: "John", EntityType: entity.Person, Score: 0.85},
		"<EMAIL_ADDRESS_12>": {Text: "john@test.com", EntityType: entity.EmailAddress, Score: 1},
	})
	data, err := Encode(rec)
	require.NoError(t, err)
	require.NoError(t, ValidateMapping(data))

	parsed, err := ParseMapping(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Mappings, parsed.Mappings)
	assert.True(t, header.Timestamp.Equal(parsed.Timestamp))
}

func TestValidateMappingEmpty(t *testing.T) {
	data, err := Encode(anonymizer.NewMappingRecord(header, nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mappings": {}`)
	require.NoError(t, ValidateMapping(data))
}

func TestValidateMappingRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing mappings", `{"document":"a","timestamp":"2025-03-14T08:26:53Z","language":"en","min_confidence_score":0.7}`},
		{"bad placeholder", `{"document":"a","timestamp":"2025-03-14T08:26:53Z","language":"en","min_confidence_score":0.7,
			"mappings":{"PERSON_1":{"text":"x","entity_type":"PERSON","score":0.9}}}`},
		{"score out of range", `{"document":"a","timestamp":"2025-03-14T08:26:53Z","language":"en","min_confidence_score":0.7,
			"mappings":{"<PERSON_1>":{"text":"x","entity_type":"PERSON","score":1.5}}}`},
		{"bad timestamp", `{"document":"a","timestamp":"yesterday","language":"en","min_confidence_score":0.7,"mappings":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMapping([]byte(tt.doc))
			require.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}
}

func TestParseExcluded(t *testing.T) {
	rec := anonymizer.NewExcludedRecord(header).AddBelowThreshold([]entity.Span{
		{Type: entity.Location, Text: "Paris", Start: 3, End: 8, Score: 0.42},
	})
	data, err := Encode(rec)
	require.NoError(t, err)

	parsed, err := ParseExcluded(data)
	require.NoError(t, err)
	require.Len(t, parsed.Entities, 1)
	assert.Equal(t, "Paris", parsed.Entities[0].Text)
	assert.Equal(t, rec.Note, parsed.Note)

	_, err = ParseExcluded([]byte(`{"entities":[]}`))
	require.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestLoadMappingFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "doc_mapping.json")
	rec := anonymizer.NewMappingRecord(header, map[string]anonymizer.MappingEntry{
		"<PERSON_1>": {Text: "John", EntityType: entity.Person, Score: 0.9},
	})
	_, err := FileSink{}.Put(ctx, path, rec)
	require.NoError(t, err)

	got, err := LoadMapping(ctx, FileSink{}, path)
	require.NoError(t, err)
	assert.Equal(t, "John", got.Mappings["<PERSON_1>"].Text)

	_, err = LoadMapping(ctx, FileSink{}, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadExcludedFromS3(t *testing.T) {
	ctx := context.Background()
	sink := NewS3Sink(newMockS3(), "b", "runs")
	rec := anonymizer.NewExcludedRecord(header).AddDeselected([]entity.Span{
		{Type: entity.Person, Text: "Ann", Start: 0, End: 3, Score: 0.9},
	})
	loc, err := sink.Put(ctx, "doc_excluded_entities.json", rec)
	require.NoError(t, err)

	got, err := LoadExcluded(ctx, sink, loc)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Entities[0].Text)
}
