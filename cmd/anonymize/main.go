// Command anonymize detects personal data in documents and replaces it with
// reversible placeholders.
package main

import (
	"os"

	"github.com/alacambra/presidio-anonymization/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
