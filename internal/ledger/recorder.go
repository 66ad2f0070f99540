package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
)

// Recorder turns finished sessions into ledger rows.
type Recorder struct {
	store *Store
	now   func() time.Time
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// RecordParams holds the inputs for one ledger row. InputText and OutputText
// are hashed, never stored.
type RecordParams struct {
	Source    string // "file", "batch", "text" or "http"
	Output    string // output document path, empty for in-memory runs
	InputText string
	Result    *anonymizer.Result
	Artifacts Artifacts
	Duration  time.Duration
}

// Record builds, signs and stores the row for a completed session. Cancelled
// sessions are ignored and return nil.
func (r *Recorder) Record(ctx context.Context, p RecordParams) (*Run, error) {
	res := p.Result
	if res == nil || res.Cancelled || res.Mapping == nil {
		return nil, nil
	}

	run := &Run{
		ID:            "run_" + uuid.New().String()[:8],
		Timestamp:     r.now(),
		Source:        p.Source,
		Document:      res.Document,
		Output:        p.Output,
		Language:      res.Mapping.Language,
		MinConfidence: res.Mapping.MinConfidence,
		Counts: Counts{
			Detected:     len(res.Accepted) + len(res.Rejected),
			Accepted:     len(res.Accepted),
			Rejected:     len(res.Rejected),
			Deselected:   len(res.Deselected),
			Overlapping:  len(res.Overlapping),
			Anonymized:   len(res.Kept),
			Placeholders: len(res.Mappings),
		},
		EntityTypes: entityTypes(res.Mappings),
		Artifacts:   p.Artifacts,
		Hashes: Hashes{
			Input:  hashString(p.InputText),
			Output: hashString(res.AnonymizedText),
		},
		DurationMS: p.Duration.Milliseconds(),
	}

	if err := r.store.Append(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func entityTypes(mappings map[string]anonymizer.MappingEntry) []string {
	seen := make(map[string]bool)
	var types []string
	for _, m := range mappings {
		if !seen[m.EntityType] {
			seen[m.EntityType] = true
			types = append(types, m.EntityType)
		}
	}
	sort.Strings(types)
	return types
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(h[:])
}
