package anonymizer

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/alacambra/presidio-anonymization/internal/entity"
)

// DetectorFactory builds a detector for one analysis configuration. It may be
// expensive (pattern compilation, model load).
type DetectorFactory func(opts entity.Options) (entity.Detector, error)

// Pool builds each detector configuration at most once and shares it between
// engines. Concurrent callers asking for the same configuration block until
// the single build finishes and then all observe the same result, including
// a build error.
type Pool struct {
	factory DetectorFactory

	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	once     sync.Once
	detector entity.Detector
	err      error
}

// NewPool returns a pool backed by factory.
func NewPool(factory DetectorFactory) *Pool {
	return &Pool{factory: factory, entries: make(map[string]*poolEntry)}
}

// Get returns the detector for opts, building it on first use.
func (p *Pool) Get(opts entity.Options) (entity.Detector, error) {
	key := opts.DetectorKey()

	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok {
		e = &poolEntry{}
		p.entries[key] = e
	}
	p.mu.Unlock()

	e.once.Do(func() {
		log.Info().Str("language", opts.Language()).Int("entity_types", len(opts.Entities())).Msg("building detector")
		e.detector, e.err = p.factory(opts)
		if e.err != nil {
			e.err = fmt.Errorf("building detector for %s: %w", key, e.err)
		}
	})
	return e.detector, e.err
}

// Len returns the number of configurations requested so far.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
