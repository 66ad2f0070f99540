// Package ledger keeps an HMAC-signed record of every completed
// anonymization run in SQLite. Rows never contain document text or detected
// values: only counts, entity types, hashes and artifact locations.
// Cancelled runs are not recorded.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	anonotel "github.com/alacambra/presidio-anonymization/internal/otel"
)

var tracer = anonotel.Tracer("github.com/alacambra/presidio-anonymization/internal/ledger")

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// Store persists signed run records in SQLite.
type Store struct {
	db     *sql.DB
	signer *Signer
}

// Run is the signed record of one anonymized document.
type Run struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	Document      string    `json:"document"`
	Output        string    `json:"output,omitempty"`
	Language      string    `json:"language"`
	MinConfidence float64   `json:"min_confidence_score"`
	Counts        Counts    `json:"counts"`
	EntityTypes   []string  `json:"entity_types,omitempty"`
	Artifacts     Artifacts `json:"artifacts"`
	Hashes        Hashes    `json:"hashes"`
	DurationMS    int64     `json:"duration_ms"`
	Signature     string    `json:"signature"`
}

// Counts summarizes what happened to the detected entities.
type Counts struct {
	Detected     int `json:"detected"`
	Accepted     int `json:"accepted"`
	Rejected     int `json:"rejected"`
	Deselected   int `json:"deselected"`
	Overlapping  int `json:"overlapping"`
	Anonymized   int `json:"anonymized"`
	Placeholders int `json:"placeholders"`
}

// Artifacts holds where the run's records were written.
type Artifacts struct {
	Mapping  string `json:"mapping,omitempty"`
	Excluded string `json:"excluded,omitempty"`
}

// Hashes fingerprint the input and output text.
type Hashes struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Document string
	Source   string
	From     time.Time
	To       time.Time
	Limit    int
}

// NewStore opens (or creates) the ledger database at dbPath.
func NewStore(dbPath string, signingKey string) (*Store, error) {
	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		source TEXT NOT NULL,
		document TEXT NOT NULL,
		run_json TEXT NOT NULL,
		signature TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	return &Store{db: db, signer: signer}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append signs run and saves it. The signature covers the JSON encoding of
// the run with an empty Signature field.
func (s *Store) Append(ctx context.Context, run *Run) error {
	ctx, span := tracer.Start(ctx, "ledger.record",
		trace.WithAttributes(attribute.String("run.id", run.ID)))
	defer span.End()

	run.Timestamp = run.Timestamp.UTC()
	run.Signature = ""
	unsigned, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	run.Signature = s.signer.Sign(unsigned)

	signed, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	query := `INSERT INTO runs (id, timestamp, source, document, run_json, signature)
	          VALUES (?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.Timestamp, run.Source, run.Document, string(signed), run.Signature)
	if err != nil {
		return fmt.Errorf("storing run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	ctx, span := tracer.Start(ctx, "ledger.get",
		trace.WithAttributes(attribute.String("run.id", id)))
	defer span.End()

	var runJSON string
	err := s.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	var run Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("unmarshaling run: %w", err)
	}
	return &run, nil
}

// List returns runs matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	ctx, span := tracer.Start(ctx, "ledger.list")
	defer span.End()

	query := `SELECT run_json FROM runs WHERE 1=1`
	args := []interface{}{}

	if f.Document != "" {
		query += ` AND document = ?`
		args = append(args, f.Document)
	}
	if f.Source != "" {
		query += ` AND source = ?`
		args = append(args, f.Source)
	}
	if !f.From.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY timestamp DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			continue
		}
		var run Run
		if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
			continue
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	span.SetAttributes(attribute.Int("run.count", len(results)))
	return results, nil
}

// Count returns the number of stored runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return n, nil
}

// Verify checks the HMAC signature of a stored run.
func (s *Store) Verify(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "ledger.verify",
		trace.WithAttributes(attribute.String("run.id", id)))
	defer span.End()

	run, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	signature := run.Signature
	run.Signature = ""
	unsigned, err := json.Marshal(run)
	if err != nil {
		return false, fmt.Errorf("marshaling for verification: %w", err)
	}
	return s.signer.Verify(unsigned, signature), nil
}
