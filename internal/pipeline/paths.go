package pipeline

import (
	"path/filepath"
	"strings"
)

// AnonymSuffix is inserted before the extension of the default output name.
const AnonymSuffix = ".anonym"

// Paths names every file one document run produces.
type Paths struct {
	Input    string
	Output   string
	Mapping  string
	Excluded string // written only when the excluded record is non-empty
}

// ResolvePaths derives the output document and artifact paths for input.
// An empty output, or one that points at the input itself, becomes
// "<stem>.anonym<ext>" beside the input. Artifacts sit beside the output
// document and are named after its stem.
func ResolvePaths(input, output string) Paths {
	if output == "" || samePath(input, output) {
		output = DefaultOutput(input)
	}
	dir := filepath.Dir(output)
	stem := stem(output)
	return Paths{
		Input:    input,
		Output:   output,
		Mapping:  filepath.Join(dir, stem+"_mapping.json"),
		Excluded: filepath.Join(dir, stem+"_excluded_entities.json"),
	}
}

// DefaultOutput returns "<stem>.anonym<ext>" in the input's directory.
func DefaultOutput(input string) string {
	return filepath.Join(filepath.Dir(input), stem(input)+AnonymSuffix+filepath.Ext(input))
}

// IsAnonymized reports whether path already carries the ".anonym" marker
// produced by DefaultOutput.
func IsAnonymized(path string) bool {
	return strings.HasSuffix(stem(path), AnonymSuffix)
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if evA, err := filepath.EvalSymlinks(absA); err == nil {
		absA = evA
	}
	if evB, err := filepath.EvalSymlinks(absB); err == nil {
		absB = evB
	}
	return absA == absB
}
