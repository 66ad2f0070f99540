// Package patterns provides the embedded default recognizer definitions.
// The YAML uses the Presidio recognizer format with two extensions:
// per-pattern "validation" (luhn, iban) and an optional named capture group
// "entity" that narrows the reported span inside a larger match.
package patterns

import _ "embed"

//go:embed pii.yaml
var piiYAML []byte

// PIIYAML returns the embedded default PII recognizer definitions.
func PIIYAML() []byte { return piiYAML }
