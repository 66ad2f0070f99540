package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
	"github.com/alacambra/presidio-anonymization/internal/artifact"
	"github.com/alacambra/presidio-anonymization/internal/pipeline"
)

var (
	textName    string
	textMapping string
	textJSON    bool
)

var textCmd = &cobra.Command{
	Use:   "text",
	Short: "Anonymize text read from stdin and print it to stdout",
	Example: `  echo "Mail john@example.com" | anonymize text
  anonymize text --mapping mapping.json < notes.txt > notes.anonym.txt`,
	Args: cobra.NoArgs,
	RunE: runText,
}

func init() {
	textCmd.Flags().StringVar(&textName, "name", "stdin", "document name recorded in the artifacts")
	textCmd.Flags().StringVar(&textMapping, "mapping", "", "also write the mapping record to this path")
	textCmd.Flags().BoolVar(&textJSON, "json", false, "print text, mapping and excluded entities as one JSON object")
	rootCmd.AddCommand(textCmd)
}

type textOutput struct {
	AnonymizedText string                     `json:"anonymized_text"`
	Mapping        *anonymizer.MappingRecord  `json:"mapping"`
	Excluded       *anonymizer.ExcludedRecord `json:"excluded,omitempty"`
	RunID          string                     `json:"run_id,omitempty"`
}

func runText(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "text")
	defer span.End()

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("no input on stdin")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, run, err := a.runner.ProcessText(ctx, pipeline.SourceText, textName, string(data), nil)
	if err != nil {
		return err
	}

	if textMapping != "" {
		if _, err := (artifact.FileSink{}).Put(ctx, textMapping, res.Mapping); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if !textJSON {
		_, err = io.WriteString(out, res.AnonymizedText)
		return err
	}

	payload := textOutput{AnonymizedText: res.AnonymizedText, Mapping: res.Mapping}
	if !res.Excluded.Empty() {
		payload.Excluded = res.Excluded
	}
	if run != nil {
		payload.RunID = run.ID
	}
	encoded, err := artifact.Encode(payload)
	if err != nil {
		return err
	}
	_, err = out.Write(encoded)
	return err
}
