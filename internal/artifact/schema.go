package artifact

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
)

var (
	//go:embed mapping.schema.json
	mappingSchema string

	//go:embed excluded.schema.json
	excludedSchema string
)

// ErrInvalidArtifact is returned when a record does not match its schema.
var ErrInvalidArtifact = errors.New("invalid artifact")

// ValidateMapping checks mapping JSON against the mapping schema.
func ValidateMapping(data []byte) error {
	return validate(mappingSchema, data)
}

// ValidateExcluded checks excluded-entities JSON against its schema.
func ValidateExcluded(data []byte) error {
	return validate(excludedSchema, data)
}

func validate(schema string, data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, verr := range result.Errors() {
			msgs = append(msgs, "- "+verr.String())
		}
		return fmt.Errorf("%w:\n%s", ErrInvalidArtifact, strings.Join(msgs, "\n"))
	}
	return nil
}

// ParseMapping validates and decodes a mapping record.
func ParseMapping(data []byte) (*anonymizer.MappingRecord, error) {
	if err := ValidateMapping(data); err != nil {
		return nil, err
	}
	var rec anonymizer.MappingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return &rec, nil
}

// ParseExcluded validates and decodes an excluded-entities record.
func ParseExcluded(data []byte) (*anonymizer.ExcludedRecord, error) {
	if err := ValidateExcluded(data); err != nil {
		return nil, err
	}
	var rec anonymizer.ExcludedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return &rec, nil
}

// LoadMapping fetches and decodes the mapping record at location.
func LoadMapping(ctx context.Context, src Source, location string) (*anonymizer.MappingRecord, error) {
	data, err := src.Get(ctx, location)
	if err != nil {
		return nil, err
	}
	rec, err := ParseMapping(data)
	if err != nil {
		return nil, fmt.Errorf("loading mapping %s: %w", location, err)
	}
	return rec, nil
}

// LoadExcluded fetches and decodes the excluded-entities record at location.
func LoadExcluded(ctx context.Context, src Source, location string) (*anonymizer.ExcludedRecord, error) {
	data, err := src.Get(ctx, location)
	if err != nil {
		return nil, err
	}
	rec, err := ParseExcluded(data)
	if err != nil {
		return nil, fmt.Errorf("loading excluded entities %s: %w", location, err)
	}
	return rec, nil
}
