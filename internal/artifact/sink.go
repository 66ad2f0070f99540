// Package artifact persists and loads the JSON records produced by an
// anonymization run: the placeholder mapping and the excluded-entities list.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	anonotel "github.com/alacambra/presidio-anonymization/internal/otel"
)

var tracer = anonotel.Tracer("github.com/alacambra/presidio-anonymization/internal/artifact")

// Sink stores a record under name and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, v any) (location string, err error)
}

// Remover deletes a stored record. Removing a record that does not exist is
// not an error.
type Remover interface {
	Remove(ctx context.Context, name string) error
}

// Source fetches a stored record by the location a Sink returned.
type Source interface {
	Get(ctx context.Context, location string) ([]byte, error)
}

// Encode renders v as indented JSON with non-ASCII and HTML characters
// kept literal, so placeholders stay readable as "<PERSON_1>".
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// FileSink writes records to the local filesystem; name is the file path.
type FileSink struct{}

// Put implements Sink.
func (FileSink) Put(ctx context.Context, name string, v any) (string, error) {
	_, span := tracer.Start(ctx, "artifact.write")
	defer span.End()
	span.SetAttributes(attribute.String("artifact.sink", "file"))

	data, err := Encode(v)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", name, err)
	}
	if err := os.WriteFile(name, data, 0o600); err != nil {
		return "", fmt.Errorf("writing artifact %s: %w", name, err)
	}
	log.Debug().Str("location", name).Msg("artifact written")
	return name, nil
}

// Remove implements Remover.
func (FileSink) Remove(_ context.Context, name string) error {
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing artifact %s: %w", name, err)
	}
	return nil
}

// Get implements Source.
func (FileSink) Get(_ context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", location, err)
	}
	return data, nil
}

// SourceFor picks the source that can read location: s3 for "s3://" URLs,
// the filesystem otherwise.
func SourceFor(location string, s3 Source) (Source, error) {
	if strings.HasPrefix(location, s3Scheme) {
		if s3 == nil {
			return nil, fmt.Errorf("artifact %s is in S3 but no S3 sink is configured", location)
		}
		return s3, nil
	}
	return FileSink{}, nil
}
