package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Entity types recognized by the anonymizer.
const (
	Person       = "PERSON"
	EmailAddress = "EMAIL_ADDRESS"
	PhoneNumber  = "PHONE_NUMBER"
	CreditCard   = "CREDIT_CARD"
	IBANCode     = "IBAN_CODE"
	Location     = "LOCATION"
	DateTime     = "DATE_TIME"
	NRP          = "NRP"
)

const (
	// DefaultLanguage is used when no language is configured.
	DefaultLanguage = "en"

	// DefaultMinConfidence separates anonymized spans from spans that are only
	// reported in the excluded-entities record.
	DefaultMinConfidence = 0.7
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrUnsupportedEntity   = errors.New("unsupported entity type")
	ErrInvalidThreshold    = errors.New("confidence threshold must be within [0,1]")
)

// Language describes a supported analysis language.
type Language struct {
	Code  string `json:"code"`
	Model string `json:"model"`
}

var languages = []Language{
	{Code: "en", Model: "en_core_web_sm"},
	{Code: "es", Model: "es_core_news_sm"},
	{Code: "de", Model: "de_core_news_md"},
	{Code: "ca", Model: "ca_core_news_lg"},
}

var entityTypes = []string{
	Person,
	EmailAddress,
	PhoneNumber,
	CreditCard,
	IBANCode,
	Location,
	DateTime,
	NRP,
}

// Languages returns the supported languages in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// Types returns every supported entity type in display order.
func Types() []string {
	out := make([]string, len(entityTypes))
	copy(out, entityTypes)
	return out
}

// LanguageCodes returns the supported language codes.
func LanguageCodes() []string {
	codes := make([]string, len(languages))
	for i, l := range languages {
		codes[i] = l.Code
	}
	return codes
}

// IsSupportedLanguage reports whether code is a supported language.
func IsSupportedLanguage(code string) bool {
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// IsSupportedType reports whether t is a supported entity type.
func IsSupportedType(t string) bool {
	for _, e := range entityTypes {
		if e == t {
			return true
		}
	}
	return false
}

// Options is the immutable analysis configuration for one anonymization
// engine. Build it with NewOptions; the zero value is not valid.
type Options struct {
	language      string
	entities      []string
	minConfidence float64
}

// NewOptions validates and freezes an analysis configuration. An empty
// entities list selects every supported type. Entity names are matched
// case-insensitively and deduplicated.
func NewOptions(language string, entities []string, minConfidence float64) (Options, error) {
	if language == "" {
		language = DefaultLanguage
	}
	if !IsSupportedLanguage(language) {
		return Options{}, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedLanguage, language, strings.Join(LanguageCodes(), ", "))
	}
	if minConfidence < 0 || minConfidence > 1 {
		return Options{}, fmt.Errorf("%w: got %v", ErrInvalidThreshold, minConfidence)
	}

	selected := entities
	if len(selected) == 0 {
		selected = entityTypes
	}
	seen := make(map[string]bool, len(selected))
	var normalized []string
	for _, e := range selected {
		t := strings.ToUpper(strings.TrimSpace(e))
		if !IsSupportedType(t) {
			return Options{}, fmt.Errorf("%w: %s", ErrUnsupportedEntity, e)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		normalized = append(normalized, t)
	}

	return Options{language: language, entities: normalized, minConfidence: minConfidence}, nil
}

// DefaultOptions returns the default configuration: English, all entity types,
// threshold DefaultMinConfidence.
func DefaultOptions() Options {
	opts, err := NewOptions(DefaultLanguage, nil, DefaultMinConfidence)
	if err != nil {
		panic(fmt.Sprintf("entity.DefaultOptions: %v", err))
	}
	return opts
}

// Language returns the analysis language code.
func (o Options) Language() string { return o.language }

// MinConfidence returns the confidence threshold.
func (o Options) MinConfidence() float64 { return o.minConfidence }

// Entities returns a copy of the selected entity types.
func (o Options) Entities() []string {
	out := make([]string, len(o.entities))
	copy(out, o.entities)
	return out
}

// Allows reports whether entity type t is selected.
func (o Options) Allows(t string) bool {
	for _, e := range o.entities {
		if e == t {
			return true
		}
	}
	return false
}

// DetectorKey identifies the detector configuration (language plus sorted
// entity filter). The threshold is not part of the key: detectors report
// every score and the confidence gate applies the threshold.
func (o Options) DetectorKey() string {
	sorted := o.Entities()
	sort.Strings(sorted)
	return o.language + ":" + strings.Join(sorted, ",")
}

// WithMinConfidence returns a copy of o with a different threshold.
func (o Options) WithMinConfidence(minConfidence float64) (Options, error) {
	return NewOptions(o.language, o.entities, minConfidence)
}
