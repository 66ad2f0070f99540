package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
	"github.com/alacambra/presidio-anonymization/internal/pipeline"
)

var (
	fileOutput      string
	fileInteractive bool

	batchOutputDir       string
	batchContinueOnError bool
)

var fileCmd = &cobra.Command{
	Use:   "file <input>",
	Short: "Anonymize one document",
	Long: `Anonymize one document and write <name>.anonym.<ext> beside it, plus
<name>.anonym_mapping.json and, when some detections were left in place,
<name>.anonym_excluded_entities.json.

With --interactive every detection above the confidence threshold is shown
with its context and can be kept or skipped; q cancels without writing
anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runFile,
}

var batchCmd = &cobra.Command{
	Use:   "batch <path>...",
	Short: "Anonymize several documents or every supported document in directories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

func init() {
	fileCmd.Flags().StringVarP(&fileOutput, "output", "o", "", "output path (default: <name>.anonym.<ext> beside the input)")
	fileCmd.Flags().BoolVarP(&fileInteractive, "interactive", "i", false, "choose which detections to anonymize")

	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "", "write every output into this directory")
	batchCmd.Flags().BoolVar(&batchContinueOnError, "continue-on-error", false, "keep going after a document fails")

	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(batchCmd)
}

func runFile(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "file")
	defer span.End()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var selector anonymizer.Selector
	if fileInteractive {
		selector = newPromptSelector(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	fr, err := a.runner.ProcessFileWithSelection(ctx, args[0], fileOutput, selector)
	if err != nil {
		return err
	}
	renderFileResult(cmd.OutOrStdout(), fr)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "batch")
	defer span.End()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	inputs, err := a.runner.ExpandInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no supported documents found")
	}

	br, err := a.runner.ProcessBatch(ctx, inputs, pipeline.BatchOptions{
		OutputDir:       batchOutputDir,
		ContinueOnError: batchContinueOnError,
	})
	out := cmd.OutOrStdout()
	if br != nil {
		for _, it := range br.Items {
			if it.Err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", it.Input, it.Err)
				continue
			}
			renderFileResult(out, it.Result)
		}
		fmt.Fprintf(out, "\n%d succeeded, %d failed, %d not processed\n",
			br.Succeeded, br.Failed, len(inputs)-len(br.Items))
	}
	if err != nil {
		return err
	}
	if br.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", br.Failed, len(inputs))
	}
	return nil
}

// renderFileResult writes a short summary of one processed document to w (testable).
func renderFileResult(w io.Writer, fr *pipeline.FileResult) {
	if fr.Cancelled {
		fmt.Fprintf(w, "✗ %s: cancelled, nothing written\n", fr.Paths.Input)
		return
	}
	res := fr.Result
	fmt.Fprintf(w, "✓ %s -> %s\n", fr.Paths.Input, fr.Paths.Output)
	fmt.Fprintf(w, "  Entities: %d anonymized as %d placeholders, %d below threshold, %d skipped, %d overlapping\n",
		len(res.Kept), len(res.Mappings), len(res.Rejected), len(res.Deselected), len(res.Overlapping))
	fmt.Fprintf(w, "  Mapping:  %s\n", fr.MappingLocation)
	if fr.ExcludedLocation != "" {
		fmt.Fprintf(w, "  Excluded: %s\n", fr.ExcludedLocation)
	}
	if fr.Run != nil {
		fmt.Fprintf(w, "  Run:      %s\n", fr.Run.ID)
	}
}
