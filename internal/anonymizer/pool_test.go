package anonymizer

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alacambra/presidio-anonymization/internal/entity"
	"github.com/alacambra/presidio-anonymization/internal/testutil"
)

func TestPool_BuildsOncePerConfiguration(t *testing.T) {
	var builds atomic.Int64
	pool := NewPool(func(entity.Options) (entity.Detector, error) {
		builds.Add(1)
		return &testutil.StaticDetector{}, nil
	})

	opts := entity.DefaultOptions()
	var wg sync.WaitGroup
	detectors := make([]entity.Detector, 32)
	for i := range detectors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := pool.Get(opts)
			assert.NoError(t, err)
			detectors[i] = d
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), builds.Load())
	for _, d := range detectors {
		assert.Same(t, detectors[0], d)
	}

	other, err := entity.NewOptions("es", nil, 0.7)
	require.NoError(t, err)
	_, err = pool.Get(other)
	require.NoError(t, err)
	assert.Equal(t, int64(2), builds.Load())
	assert.Equal(t, 2, pool.Len())
}

func TestPool_ThresholdDoesNotForceRebuild(t *testing.T) {
	var builds atomic.Int64
	pool := NewPool(func(entity.Options) (entity.Detector, error) {
		builds.Add(1)
		return &testutil.StaticDetector{}, nil
	})
	a := entity.DefaultOptions()
	b, err := a.WithMinConfidence(0.2)
	require.NoError(t, err)

	_, err = pool.Get(a)
	require.NoError(t, err)
	_, err = pool.Get(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), builds.Load())
}

func TestPool_BuildErrorIsSticky(t *testing.T) {
	var builds atomic.Int64
	boom := errors.New("model not installed")
	pool := NewPool(func(entity.Options) (entity.Detector, error) {
		builds.Add(1)
		return nil, boom
	})

	_, err := pool.Get(entity.DefaultOptions())
	require.ErrorIs(t, err, boom)
	_, err = pool.Get(entity.DefaultOptions())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), builds.Load())
}
