package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// contextRunes is how much surrounding text the prompt shows on each side.
const contextRunes = 40

// promptSelector asks on a terminal which accepted entities to anonymize.
// Answers: y (default) keeps, n skips, a keeps this and every remaining
// entity, q cancels the document. End of input cancels.
type promptSelector struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptSelector(in io.Reader, out io.Writer) *promptSelector {
	return &promptSelector{in: bufio.NewReader(in), out: out}
}

// Select implements anonymizer.Selector.
func (p *promptSelector) Select(ctx context.Context, text string, accepted []entity.Span) (anonymizer.Selection, error) {
	if len(accepted) == 0 {
		return anonymizer.KeepAll(), nil
	}
	runes := []rune(text)
	fmt.Fprintf(p.out, "%d entities found. Anonymize each? [Y]es / [n]o / [a]ll remaining / [q]uit\n", len(accepted))

	keep := make([]int, 0, len(accepted))
	for i, s := range accepted {
		if err := ctx.Err(); err != nil {
			return anonymizer.Selection{}, err
		}
		fmt.Fprintf(p.out, "\n[%d/%d] %s %q (score %.2f)\n", i+1, len(accepted), s.Type, s.Text, s.Score)
		fmt.Fprintf(p.out, "  %s\n", snippet(runes, s))

		answer, err := p.ask()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out, "Input closed, cancelling.")
			return anonymizer.Cancel(), nil
		}
		if err != nil {
			return anonymizer.Selection{}, err
		}
		switch answer {
		case "y":
			keep = append(keep, s.Seq)
		case "n":
		case "a":
			for _, rest := range accepted[i:] {
				keep = append(keep, rest.Seq)
			}
			return anonymizer.Keep(keep...), nil
		case "q":
			return anonymizer.Cancel(), nil
		}
	}
	return anonymizer.Keep(keep...), nil
}

// ask reads answers until one is valid. An empty answer means yes.
func (p *promptSelector) ask() (string, error) {
	for {
		fmt.Fprint(p.out, "  Anonymize? [Y/n/a/q] ")
		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		switch a := strings.ToLower(strings.TrimSpace(line)); a {
		case "", "y", "yes":
			return "y", nil
		case "n", "no":
			return "n", nil
		case "a", "all":
			return "a", nil
		case "q", "quit":
			return "q", nil
		default:
			fmt.Fprintf(p.out, "  Unknown answer %q.\n", a)
			if err != nil {
				return "", err
			}
		}
	}
}

// snippet shows s in its surrounding text on a single line with the entity
// bracketed.
func snippet(runes []rune, s entity.Span) string {
	from := max(s.Start-contextRunes, 0)
	to := min(s.End+contextRunes, len(runes))

	var b strings.Builder
	if from > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[from:s.Start]))
	b.WriteString("[")
	b.WriteString(string(runes[s.Start:s.End]))
	b.WriteString("]")
	b.WriteString(string(runes[s.End:to]))
	if to < len(runes) {
		b.WriteString("...")
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
