// Package document reads and writes the text of supported document formats.
// Every handler works on plain text: reading extracts it and writing renders
// it into a fresh document of the same format.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/unicode/norm"

	anonotel "github.com/alacambra/presidio-anonymization/internal/otel"
)

var tracer = anonotel.Tracer("github.com/alacambra/presidio-anonymization/internal/document")

// DefaultMaxSizeMB is the read limit when none is configured.
const DefaultMaxSizeMB = 50

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTooLarge          = errors.New("document exceeds size limit")
)

// Handler reads and writes one family of formats.
type Handler interface {
	Extensions() []string
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, text string) error
}

// Registry dispatches to a Handler by file extension (case-insensitive) and
// applies the size limit and optional Unicode normalisation on read.
type Registry struct {
	handlers  map[string]Handler
	maxSize   int64
	normalize bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxSizeMB sets the largest document Read accepts. Zero or less keeps
// the default.
func WithMaxSizeMB(mb int) Option {
	return func(r *Registry) {
		if mb > 0 {
			r.maxSize = int64(mb) * 1024 * 1024
		}
	}
}

// WithNormalize converts read text to Unicode NFC so composed and decomposed
// spellings of the same name are detected alike.
func WithNormalize(on bool) Option {
	return func(r *Registry) { r.normalize = on }
}

// WithHandler registers h for its extensions, replacing earlier handlers.
func WithHandler(h Handler) Option {
	return func(r *Registry) { r.register(h) }
}

// NewRegistry returns a registry with the plain text, Word and PDF handlers.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
		maxSize:  DefaultMaxSizeMB * 1024 * 1024,
	}
	r.register(Plain{})
	r.register(Docx{})
	r.register(PDF{})
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) register(h Handler) {
	for _, ext := range h.Extensions() {
		r.handlers[strings.ToLower(ext)] = h
	}
}

// Extensions returns the supported extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.handlers))
	for ext := range r.handlers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether path has a registered extension.
func (r *Registry) Supported(path string) bool {
	_, err := r.Handler(path)
	return err == nil
}

// Handler returns the handler for path's extension.
func (r *Registry) Handler(path string) (Handler, error) {
	ext := strings.ToLower(filepath.Ext(path))
	h, ok := r.handlers[ext]
	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return h, nil
}

// Read extracts the text of the document at path.
func (r *Registry) Read(ctx context.Context, path string) (string, error) {
	ctx, span := tracer.Start(ctx, "document.read")
	defer span.End()
	span.SetAttributes(attribute.String("document.ext", strings.ToLower(filepath.Ext(path))))

	h, err := r.Handler(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file %s: %w", path, err)
	}
	if info.Size() > r.maxSize {
		return "", fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, path, info.Size(), r.maxSize)
	}

	text, err := h.Read(ctx, path)
	if err != nil {
		return "", err
	}
	if r.normalize {
		text = norm.NFC.String(text)
	}
	span.SetAttributes(attribute.Int("document.chars", len(text)))
	log.Debug().Str("path", path).Int("bytes", len(text)).Msg("document read")
	return text, nil
}

// Write renders text into a new document at path, creating parent
// directories as needed.
func (r *Registry) Write(ctx context.Context, path, text string) error {
	ctx, span := tracer.Start(ctx, "document.write")
	defer span.End()

	h, err := r.Handler(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := h.Write(ctx, path, text); err != nil {
		return err
	}
	log.Debug().Str("path", path).Int("bytes", len(text)).Msg("document written")
	return nil
}
