package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/alacambra/presidio-anonymization/patterns"
)

// PIIPattern is a compiled, ready-to-use detection pattern for one language.
type PIIPattern struct {
	Name         string
	Type         string
	Pattern      *regexp.Regexp
	Score        float64
	Validation   string
	ContextWords []string
	// Group is the submatch index whose bounds become the span; 0 is the
	// whole match.
	Group int
	// WordBounded requires Unicode word boundaries around the span. RE2's \b
	// only understands ASCII, so deny lists check boundaries after matching.
	WordBounded bool
}

// DefaultRecognizers returns the built-in recognizers parsed from the
// embedded pii.yaml file. This is the first layer in the merge chain.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.PIIYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded PII patterns: %w", err)
	}
	return rf.Recognizers, nil
}

// CompilePIIPatterns converts recognizer configs into the runtime patterns
// for language. Disabled recognizers and recognizers that do not support the
// language are skipped. Every regex produces one pattern and a non-empty deny
// list produces one more.
func CompilePIIPatterns(recognizers []RecognizerConfig, language string) ([]PIIPattern, error) {
	var compiled []PIIPattern

	for _, rec := range recognizers {
		if !rec.isEnabled() || !rec.supports(language) {
			continue
		}
		if rec.SupportedEntity == "" {
			return nil, fmt.Errorf("recognizer %q has no supported_entity", rec.Name)
		}
		if err := rec.checkScores(); err != nil {
			return nil, err
		}
		context := rec.contextFor(language)

		for _, p := range rec.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			switch p.Validation {
			case "", validationLuhn, validationIBAN:
			default:
				return nil, fmt.Errorf("pattern %q in recognizer %q: unknown validation %q", p.Name, rec.Name, p.Validation)
			}
			group := re.SubexpIndex("entity")
			if group < 0 {
				group = 0
			}
			compiled = append(compiled, PIIPattern{
				Name:         rec.Name + "/" + p.Name,
				Type:         rec.SupportedEntity,
				Pattern:      re,
				Score:        p.Score,
				Validation:   p.Validation,
				ContextWords: context,
				Group:        group,
			})
		}

		if len(rec.DenyList) > 0 {
			re, err := compileDenyList(rec.DenyList)
			if err != nil {
				return nil, fmt.Errorf("compiling deny list in recognizer %q: %w", rec.Name, err)
			}
			if re == nil {
				continue
			}
			score := rec.DenyListScore
			if score == 0 {
				score = 1.0
			}
			compiled = append(compiled, PIIPattern{
				Name:         rec.Name + "/deny_list",
				Type:         rec.SupportedEntity,
				Pattern:      re,
				Score:        score,
				ContextWords: context,
				WordBounded:  true,
			})
		}
	}

	return compiled, nil
}

// compileDenyList builds one alternation from the entries, longest first so
// "New York" wins over "York". It returns nil when no entry is left after
// trimming.
func compileDenyList(entries []string) (*regexp.Regexp, error) {
	words := make([]string, 0, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			words = append(words, e)
		}
	}
	if len(words) == 0 {
		return nil, nil
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile("(?:" + strings.Join(quoted, "|") + ")")
}
