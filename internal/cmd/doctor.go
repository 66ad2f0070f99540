package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alacambra/presidio-anonymization/internal/doctor"
)

var (
	doctorJSON       bool
	doctorSkipRemote bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks (data dir, keys, recognizers, ledger, artifact sink)",
	Long:  "Verifies the data directory is writable, recognizers compile and detect for every language, the ledger database is usable and the artifact sink is reachable.",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "print the report as JSON")
	doctorCmd.Flags().BoolVar(&doctorSkipRemote, "skip-remote", false, "do not resolve AWS credentials")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	report := doctor.Run(ctx, doctor.Options{SkipRemote: doctorSkipRemote})

	out := cmd.OutOrStdout()
	if doctorJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		renderDoctorReport(out, report)
	}
	if report.Status == doctor.StatusFail {
		return fmt.Errorf("%d check(s) failed", report.Summary.Fail)
	}
	return nil
}

// renderDoctorReport writes one line per check plus fixes to w (testable).
func renderDoctorReport(w io.Writer, report *doctor.Report) {
	for _, c := range report.Checks {
		mark := "✓"
		switch c.Status {
		case doctor.StatusWarn:
			mark = "!"
		case doctor.StatusFail:
			mark = "✗"
		}
		fmt.Fprintf(w, "%s [%s] %s: %s\n", mark, c.Category, c.Name, c.Message)
		if c.Fix != "" && c.Status != doctor.StatusPass {
			fmt.Fprintf(w, "    fix: %s\n", c.Fix)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d warnings, %d failed\n", report.Summary.Pass, report.Summary.Warn, report.Summary.Fail)
}
