package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptions(t *testing.T) {
	tests := []struct {
		name      string
		language  string
		entities  []string
		threshold float64
		wantErr   error
		wantTypes []string
	}{
		{name: "defaults", language: "", threshold: 0.7, wantTypes: Types()},
		{name: "case-insensitive dedup", language: "es", entities: []string{"person", "PERSON", " email_address "}, threshold: 0.5, wantTypes: []string{Person, EmailAddress}},
		{name: "unsupported language", language: "fr", threshold: 0.7, wantErr: ErrUnsupportedLanguage},
		{name: "unsupported entity", language: "en", entities: []string{"US_SSN"}, threshold: 0.7, wantErr: ErrUnsupportedEntity},
		{name: "threshold above one", language: "en", threshold: 1.2, wantErr: ErrInvalidThreshold},
		{name: "threshold below zero", language: "en", threshold: -0.1, wantErr: ErrInvalidThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := NewOptions(tt.language, tt.entities, tt.threshold)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTypes, opts.Entities())
			assert.Equal(t, tt.threshold, opts.MinConfidence())
		})
	}
}

func TestOptions_EntitiesIsACopy(t *testing.T) {
	opts := DefaultOptions()
	got := opts.Entities()
	got[0] = "MUTATED"
	assert.Equal(t, Person, opts.Entities()[0])
}

func TestOptions_DetectorKeyIgnoresOrderAndThreshold(t *testing.T) {
	a, err := NewOptions("de", []string{Person, EmailAddress}, 0.3)
	require.NoError(t, err)
	b, err := NewOptions("de", []string{EmailAddress, Person}, 0.9)
	require.NoError(t, err)
	assert.Equal(t, a.DetectorKey(), b.DetectorKey())

	c, err := NewOptions("en", []string{EmailAddress, Person}, 0.9)
	require.NoError(t, err)
	assert.NotEqual(t, a.DetectorKey(), c.DetectorKey())
}

func TestSequence_OrdersByStartAndNumbers(t *testing.T) {
	in := []Span{
		{Type: Person, Text: "b", Start: 10, End: 11},
		{Type: Person, Text: "a", Start: 2, End: 3},
		{Type: EmailAddress, Text: "c", Start: 10, End: 12},
	}
	out := Sequence(in)
	require.Len(t, out, 3)
	assert.Equal(t, []int{2, 10, 10}, []int{out[0].Start, out[1].Start, out[2].Start})
	assert.Equal(t, Person, out[1].Type, "stable order for equal starts")
	for i, s := range out {
		assert.Equal(t, i, s.Seq)
	}
	assert.Equal(t, 10, in[0].Start, "input untouched")
}

func TestRuneOffsets(t *testing.T) {
	text := "Grüße an José"
	byteStart := len("Grüße an ")
	start, end := RuneOffsets(text, byteStart, len(text))
	assert.Equal(t, 9, start)
	assert.Equal(t, 13, end)
	assert.Equal(t, "José", string([]rune(text)[start:end]))
}

func TestSpan_Validate(t *testing.T) {
	runes := []rune("Hello John")
	ok := Span{Type: Person, Text: "John", Start: 6, End: 10, Score: 0.9}
	assert.NoError(t, ok.Validate(runes))

	bad := []Span{
		{Type: Person, Text: "John", Start: 6, End: 11, Score: 0.9},
		{Type: Person, Text: "", Start: 6, End: 6, Score: 0.9},
		{Type: Person, Text: "Jo", Start: 6, End: 10, Score: 0.9},
		{Type: Person, Text: "John", Start: 6, End: 10, Score: 1.5},
		{Type: Person, Text: "John", Start: -1, End: 10, Score: 0.5},
		{Type: Person, Text: "John", Start: 6, End: 10, Score: math.NaN()},
		{Type: Person, Text: "John", Start: 6, End: 10, Score: -0.1},
	}
	for _, s := range bad {
		assert.Error(t, s.Validate(runes))
	}
}

func TestValidScore(t *testing.T) {
	assert.True(t, ValidScore(0))
	assert.True(t, ValidScore(1))
	assert.True(t, ValidScore(0.7))
	assert.False(t, ValidScore(math.NaN()))
	assert.False(t, ValidScore(math.Inf(1)))
	assert.False(t, ValidScore(1.0001))
	assert.False(t, ValidScore(-0.0001))
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText(""))
	assert.NoError(t, ValidateText("Grüße, José"))

	err := ValidateText("ok \xff\xfe")
	require.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Contains(t, err.Error(), "0xff at offset 3")
}

func TestSpan_Overlaps(t *testing.T) {
	a := Span{Start: 0, End: 5}
	assert.True(t, a.Overlaps(Span{Start: 4, End: 8}))
	assert.False(t, a.Overlaps(Span{Start: 5, End: 8}))
	assert.True(t, a.Overlaps(Span{Start: 1, End: 2}))
}
