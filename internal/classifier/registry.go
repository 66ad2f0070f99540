package classifier

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// RecognizerFile is the top-level YAML structure for a recognizer config file.
// Mirrors Presidio's recognizer registry YAML format.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig mirrors Presidio's YAML recognizer schema.
type RecognizerConfig struct {
	Name               string            `yaml:"name" json:"name"`
	SupportedEntity    string            `yaml:"supported_entity" json:"supported_entity"`
	Enabled            *bool             `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns           []PatternConfig   `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	SupportedLanguages []LanguageContext `yaml:"supported_languages,omitempty" json:"supported_languages,omitempty"`
	DenyList           []string          `yaml:"deny_list,omitempty" json:"deny_list,omitempty"`
	DenyListScore      float64           `yaml:"deny_list_score,omitempty" json:"deny_list_score,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer.
type PatternConfig struct {
	Name  string  `yaml:"name" json:"name"`
	Regex string  `yaml:"regex" json:"regex"`
	Score float64 `yaml:"score" json:"score"`
	// Validation names a checksum gate: "luhn" or "iban". A match that passes
	// the gate is reported with score 1.0; one that fails is dropped.
	Validation string `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// LanguageContext holds context words for a specific language.
type LanguageContext struct {
	Language string   `yaml:"language" json:"language"`
	Context  []string `yaml:"context,omitempty" json:"context,omitempty"`
}

// isEnabled returns true if the recognizer is enabled (defaults to true when nil).
func (r *RecognizerConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// supports reports whether the recognizer applies to language. A recognizer
// without supported_languages applies to every language.
func (r *RecognizerConfig) supports(language string) bool {
	if len(r.SupportedLanguages) == 0 {
		return true
	}
	for _, lc := range r.SupportedLanguages {
		if strings.EqualFold(lc.Language, language) {
			return true
		}
	}
	return false
}

// contextFor returns the context words declared for language.
func (r *RecognizerConfig) contextFor(language string) []string {
	for _, lc := range r.SupportedLanguages {
		if strings.EqualFold(lc.Language, language) {
			return lc.Context
		}
	}
	return nil
}

// ParseRecognizerFile parses recognizer YAML bytes into a RecognizerFile.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	for _, rec := range rf.Recognizers {
		if err := rec.checkScores(); err != nil {
			return nil, err
		}
	}
	return &rf, nil
}

// checkScores rejects pattern and deny list scores outside [0,1], NaN
// included.
func (r *RecognizerConfig) checkScores() error {
	for _, p := range r.Patterns {
		if !entity.ValidScore(p.Score) {
			return fmt.Errorf("pattern %q in recognizer %q: score %v outside [0,1]", p.Name, r.Name, p.Score)
		}
	}
	if !entity.ValidScore(r.DenyListScore) {
		return fmt.Errorf("recognizer %q: deny_list_score %v outside [0,1]", r.Name, r.DenyListScore)
	}
	return nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing pattern file as a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// MergeRecognizers merges recognizer layers in order. Later layers override
// earlier ones by matching on the recognizer Name field. New recognizers are
// appended.
func MergeRecognizers(layers ...[]*RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if rc == nil {
				continue
			}
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = *rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, *rc)
			}
		}
	}

	return merged
}

// toPtrSlice converts []RecognizerConfig to []*RecognizerConfig for MergeRecognizers.
func toPtrSlice(configs []RecognizerConfig) []*RecognizerConfig {
	ptrs := make([]*RecognizerConfig, len(configs))
	for i := range configs {
		ptrs[i] = &configs[i]
	}
	return ptrs
}

// FilterByEntities keeps only recognizers whose supported_entity is listed.
// An empty list keeps everything.
func FilterByEntities(recognizers []RecognizerConfig, entities []string) []RecognizerConfig {
	if len(entities) == 0 {
		return recognizers
	}
	var filtered []RecognizerConfig
	for _, r := range recognizers {
		if slices.Contains(entities, r.SupportedEntity) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// FilterByLanguage keeps only recognizers that apply to language.
func FilterByLanguage(recognizers []RecognizerConfig, language string) []RecognizerConfig {
	var filtered []RecognizerConfig
	for _, r := range recognizers {
		if r.supports(language) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
