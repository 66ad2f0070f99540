package classifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

func analyze(t *testing.T, text string, opts ...DetectorOption) []entity.Span {
	t.Helper()
	d, err := NewDetector(opts...)
	require.NoError(t, err)
	spans, err := d.Analyze(context.Background(), text)
	require.NoError(t, err)
	return spans
}

func findSpan(spans []entity.Span, entityType, text string) (entity.Span, bool) {
	for _, s := range spans {
		if s.Type == entityType && s.Text == text {
			return s, true
		}
	}
	return entity.Span{}, false
}

func ofType(spans []entity.Span, entityType string) []entity.Span {
	var out []entity.Span
	for _, s := range spans {
		if s.Type == entityType {
			out = append(out, s)
		}
	}
	return out
}

func TestDetectorFindsEntities(t *testing.T) {
	tests := []struct {
		name      string
		language  string
		text      string
		wantType  string
		wantText  string
		wantScore float64
	}{
		{"email", "en", "Contact me at user@example.com", entity.EmailAddress, "user@example.com", 1.0},
		{"iban validated", "en", "My IBAN is DE89370400440532013000", entity.IBANCode, "DE89370400440532013000", 1.0},
		{"iban spaced", "es", "IBAN: ES91 2100 0418 4502 0005 1332.", entity.IBANCode, "ES91 2100 0418 4502 0005 1332", 1.0},
		{"credit card validated", "en", "Card: 4111111111111111", entity.CreditCard, "4111111111111111", 1.0},
		{"credit card dashes", "de", "Karte 4111-1111-1111-1111 gültig", entity.CreditCard, "4111-1111-1111-1111", 1.0},
		{"phone with context", "en", "Call me on +34 612 345 678 tomorrow", entity.PhoneNumber, "+34 612 345 678", 1.0},
		{"phone without context", "en", "Number +34 612 345 678", entity.PhoneNumber, "+34 612 345 678", 0.75},
		{"spanish mobile with context", "es", "Mi móvil es 612 345 678", entity.PhoneNumber, "612 345 678", 0.75},
		{"greeting", "en", "Dear John Smith, we met.", entity.Person, "John Smith", 0.7},
		{"honorific with umlaut", "en", "Dr. Müller arrived", entity.Person, "Müller", 0.85},
		{"spanish greeting", "es", "Hola Juan, ¿qué tal?", entity.Person, "Juan", 0.7},
		{"city deny list", "de", "Ich wohne in München.", entity.Location, "München", 0.85},
		{"longest deny entry", "en", "I live in New York.", entity.Location, "New York", 0.85},
		{"nationality", "es", "Es un ciudadano español.", entity.NRP, "español", 0.85},
		{"iso date with context", "en", "Born on 1990-05-12.", entity.DateTime, "1990-05-12", 0.95},
		{"catalan date", "ca", "Nascut el 3 de març de 1985", entity.DateTime, "3 de març de 1985", 0.75},
		{"german street", "de", "Anschrift: Hauptstraße 5, Berlin", entity.Location, "Hauptstraße 5", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := analyze(t, tt.text, WithLanguage(tt.language))
			got, ok := findSpan(spans, tt.wantType, tt.wantText)
			require.True(t, ok, "expected %s %q in %+v", tt.wantType, tt.wantText, spans)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, []rune(tt.text)[got.Start:got.End], []rune(tt.wantText))
		})
	}
}

func TestDetectorRejectsFailedChecksums(t *testing.T) {
	spans := analyze(t, "IBAN DE89370400440532013001 card 4111111111111112")
	assert.Empty(t, ofType(spans, entity.IBANCode))
	assert.Empty(t, ofType(spans, entity.CreditCard))
}

func TestDetectorContextDependsOnLanguage(t *testing.T) {
	text := "Mi móvil es 612 345 678"

	es, ok := findSpan(analyze(t, text, WithLanguage("es")), entity.PhoneNumber, "612 345 678")
	require.True(t, ok)
	en, ok := findSpan(analyze(t, text, WithLanguage("en")), entity.PhoneNumber, "612 345 678")
	require.True(t, ok)

	assert.InDelta(t, 0.75, es.Score, 1e-9)
	assert.InDelta(t, 0.4, en.Score, 1e-9)
}

func TestDetectorLanguageFilter(t *testing.T) {
	text := "Hola Juan"
	assert.Empty(t, ofType(analyze(t, text, WithLanguage("en")), entity.Person))
	assert.Len(t, ofType(analyze(t, text, WithLanguage("es")), entity.Person), 1)
}

func TestDetectorUnicodeWordBoundaries(t *testing.T) {
	assert.Empty(t, ofType(analyze(t, "Die Münchener Freiheit", WithLanguage("de")), entity.Location))
	assert.Empty(t, ofType(analyze(t, "a Berliner", WithLanguage("en")), entity.Location))
}

func TestDetectorDeduplicatesSameRange(t *testing.T) {
	// Both the greeting and the honorific pattern report "Schäfer".
	spans := ofType(analyze(t, "Sehr geehrte Frau Schäfer, danke.", WithLanguage("de")), entity.Person)
	require.Len(t, spans, 1)
	assert.Equal(t, "Schäfer", spans[0].Text)
	assert.InDelta(t, 0.85, spans[0].Score, 1e-9)
}

func TestDetectorCodePointOffsets(t *testing.T) {
	text := "Grüße: user@example.com"
	got, ok := findSpan(analyze(t, text), entity.EmailAddress, "user@example.com")
	require.True(t, ok)
	assert.Equal(t, 7, got.Start)
	assert.Equal(t, 23, got.End)
}

func TestDetectorOrdersByStart(t *testing.T) {
	spans := analyze(t, "user@example.com lives in Paris, card 4111111111111111")
	require.NotEmpty(t, spans)
	for i := 1; i < len(spans); i++ {
		assert.LessOrEqual(t, spans[i-1].Start, spans[i].Start)
	}
}

func TestDetectorEntityFilter(t *testing.T) {
	spans := analyze(t, "mail user@example.com IBAN DE89370400440532013000",
		WithEntities([]string{entity.EmailAddress}))
	require.Len(t, spans, 1)
	assert.Equal(t, entity.EmailAddress, spans[0].Type)
}

func TestDetectorPatternFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	yaml := `
recognizers:
  - name: email
    supported_entity: EMAIL_ADDRESS
    enabled: false
  - name: employee id
    supported_entity: EMPLOYEE_ID
    patterns:
      - name: emp
        regex: '\bEMP-\d{6}\b'
        score: 0.95
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	spans := analyze(t, "EMP-123456 wrote from user@example.com", WithPatternFile(path))
	assert.Empty(t, ofType(spans, entity.EmailAddress), "pattern file disables the email recognizer")
	got, ok := findSpan(spans, "EMPLOYEE_ID", "EMP-123456")
	require.True(t, ok)
	assert.InDelta(t, 0.95, got.Score, 1e-9)
}

func TestDetectorPatternFileBadScoreFailsAtConstruction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	yaml := `
recognizers:
  - name: employee id
    supported_entity: EMPLOYEE_ID
    patterns:
      - name: emp
        regex: '\bEMP-\d{6}\b'
        score: .nan
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	d, err := NewDetector(WithPatternFile(path))
	require.Error(t, err)
	assert.Nil(t, d)
	assert.Contains(t, err.Error(), "outside [0,1]")
}

func TestDetectorMissingPatternFileIsIgnored(t *testing.T) {
	spans := analyze(t, "user@example.com", WithPatternFile("/nonexistent/patterns.yaml"))
	assert.Len(t, ofType(spans, entity.EmailAddress), 1)
}

func TestDetectorCustomRecognizerError(t *testing.T) {
	_, err := NewDetector(WithCustomRecognizers([]RecognizerConfig{
		{Name: "broken", SupportedEntity: "PERSON", Patterns: []PatternConfig{{Name: "x", Regex: `(`}}},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling patterns")
}

func TestDetectorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := MustNewDetector().Analyze(ctx, "user@example.com")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewFactory(t *testing.T) {
	opts, err := entity.NewOptions("es", []string{entity.EmailAddress}, 0.5)
	require.NoError(t, err)

	d, err := NewFactory()(opts)
	require.NoError(t, err)
	det, ok := d.(*Detector)
	require.True(t, ok)
	assert.Equal(t, "es", det.Language())

	spans, err := d.Analyze(context.Background(), "Hola Juan, user@example.com")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, entity.EmailAddress, spans[0].Type)
}

func TestEnhanceScoreWithContextCapped(t *testing.T) {
	score := enhanceScoreWithContext("phone 123", 6, 9, 0.9, []string{"phone"})
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestContainsWord(t *testing.T) {
	assert.False(t, containsWord("the hotel lobby", "tel"))
	assert.True(t, containsWord("tel: ", "tel"))
	assert.True(t, containsWord("mi teléfono ", "teléfono"))
	assert.True(t, containsWord("hotel tel", "tel"))
	assert.False(t, containsWord("anything", ""))
}
