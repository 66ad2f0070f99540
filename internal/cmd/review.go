package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alacambra/presidio-anonymization/internal/review"
)

var (
	reviewMapping       string
	reviewExcluded      string
	reviewOutput        string
	reviewTitle         string
	reviewHideOriginals bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <anonymized-file>",
	Short: "Render an HTML report highlighting every placeholder",
	Long: `Render an anonymized document as a standalone HTML page with every
placeholder highlighted, a table mapping placeholders to their original
values, and the entities that were left in place. Markdown documents are
rendered as Markdown.`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewMapping, "mapping", "m", "", "mapping record produced by the anonymization run")
	reviewCmd.Flags().StringVar(&reviewExcluded, "excluded", "", "excluded-entities record (optional)")
	reviewCmd.Flags().StringVarP(&reviewOutput, "output", "o", "", "report path (default: <name>.review.html)")
	reviewCmd.Flags().StringVar(&reviewTitle, "title", "", "page title")
	reviewCmd.Flags().BoolVar(&reviewHideOriginals, "hide-originals", false, "leave original values out of the report")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "review")
	defer span.End()

	input := args[0]
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	text, err := a.docs.Read(ctx, input)
	if err != nil {
		return err
	}

	in := review.Input{
		Title:         reviewTitle,
		Text:          text,
		Markdown:      strings.EqualFold(filepath.Ext(input), ".md"),
		HideOriginals: reviewHideOriginals,
	}
	if reviewMapping != "" {
		if in.Mapping, err = a.loadMapping(ctx, reviewMapping); err != nil {
			return err
		}
	}
	if reviewExcluded != "" {
		if in.Excluded, err = a.loadExcluded(ctx, reviewExcluded); err != nil {
			return err
		}
	}

	output := reviewOutput
	if output == "" {
		ext := filepath.Ext(input)
		output = strings.TrimSuffix(input, ext) + ".review.html"
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	sum, err := review.Render(f, in)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s -> %s (%d placeholders, %d occurrences, %d unknown, %d left in place)\n",
		input, output, sum.Placeholders, sum.Occurrences, sum.Unknown, sum.Excluded)
	return nil
}
