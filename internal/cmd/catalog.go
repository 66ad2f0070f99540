package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alacambra/presidio-anonymization/internal/document"
	"github.com/alacambra/presidio-anonymization/internal/entity"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported analysis languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "languages")
		defer span.End()

		renderLanguages(cmd.OutOrStdout(), entity.Languages(), entity.DefaultLanguage)
		return nil
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported document formats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "formats")
		defer span.End()

		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(document.NewRegistry().Extensions(), "\n"))
		return nil
	},
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List detectable entity types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "entities")
		defer span.End()

		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(entity.Types(), "\n"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(entitiesCmd)
}

// renderLanguages writes one line per language, marking the default (testable).
func renderLanguages(w io.Writer, langs []entity.Language, def string) {
	for _, l := range langs {
		mark := " "
		if l.Code == def {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-3s %s\n", mark, l.Code, l.Model)
	}
}
