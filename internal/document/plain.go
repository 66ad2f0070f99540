package document

import (
	"context"
	"fmt"
	"os"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// Plain handles UTF-8 text files. Markdown is treated as text so markup
// survives anonymization untouched.
type Plain struct{}

// Extensions implements Handler.
func (Plain) Extensions() []string { return []string{".txt", ".md"} }

// Read implements Handler.
func (Plain) Read(_ context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file %s: %w", path, err)
	}
	text := string(content)
	if err := entity.ValidateText(text); err != nil {
		return "", fmt.Errorf("reading file %s: %w", path, err)
	}
	return text, nil
}

// Write implements Handler.
func (Plain) Write(_ context.Context, path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	return nil
}
