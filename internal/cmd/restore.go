package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alacambra/presidio-anonymization/internal/artifact"
	"github.com/alacambra/presidio-anonymization/internal/pipeline"
)

var (
	restoreMapping string
	restoreOutput  string
)

var restoreCmd = &cobra.Command{
	Use:   "restore <anonymized-file>",
	Short: "Put the original values back into an anonymized document",
	Long: `Replace every placeholder in an anonymized document with the original
value from its mapping record. The mapping may be a local path or an s3://
URL when the S3 artifact sink is configured.

The result is written to <name>.restored.<ext> unless -o is given; -o - prints
the text to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreMapping, "mapping", "m", "", "mapping record produced by the anonymization run")
	restoreCmd.Flags().StringVarP(&restoreOutput, "output", "o", "", "output path, or - for stdout")
	_ = restoreCmd.MarkFlagRequired("mapping")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "restore")
	defer span.End()

	input := args[0]
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.loadMapping(ctx, restoreMapping)
	if err != nil {
		return err
	}
	text, err := a.docs.Read(ctx, input)
	if err != nil {
		return err
	}
	restored, replaced := artifact.Restore(text, rec.Mappings)

	if restoreOutput == "-" {
		_, err = io.WriteString(cmd.OutOrStdout(), restored)
		return err
	}
	output := restoreOutput
	if output == "" {
		output = restoredOutput(input)
	}
	if err := a.docs.Write(ctx, output, restored); err != nil {
		return err
	}

	log.Info().Str("output", output).Int("replaced", replaced).Msg("document restored")
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s -> %s (%d placeholders replaced)\n", input, output, replaced)
	return nil
}

// restoredOutput returns "<stem>.restored<ext>" beside input, dropping the
// ".anonym" marker when present.
func restoredOutput(input string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	stem = strings.TrimSuffix(stem, pipeline.AnonymSuffix)
	return filepath.Join(filepath.Dir(input), stem+".restored"+ext)
}
