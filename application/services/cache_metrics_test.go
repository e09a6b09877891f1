package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Thresholds in these tests are deliberately coarse so classification
// does not depend on scheduler jitter.
const testThreshold = 30 * time.Millisecond

func newTestMetrics() *CacheMetrics {
	return NewCacheMetrics(testThreshold, zap.NewNop())
}

func fastCall() error { return nil }

func slowCall() error {
	time.Sleep(testThreshold * 2)
	return nil
}

func TestTrackClassification(t *testing.T) {
	t.Run("fast call is a hit", func(t *testing.T) {
		m := newTestMetrics()
		require.NoError(t, m.Track("op", fastCall))

		all := m.AllMetrics()
		require.Contains(t, all, "op")
		assert.Equal(t, int64(1), all["op"].Hits)
		assert.Equal(t, int64(0), all["op"].Misses)
	})

	t.Run("slow call is a miss", func(t *testing.T) {
		m := newTestMetrics()
		require.NoError(t, m.Track("op", slowCall))

		all := m.AllMetrics()
		assert.Equal(t, int64(0), all["op"].Hits)
		assert.Equal(t, int64(1), all["op"].Misses)
	})

	t.Run("failed call is neither hit nor miss but counts time", func(t *testing.T) {
		m := newTestMetrics()
		wantErr := errors.New("store down")
		err := m.Track("op", func() error {
			time.Sleep(testThreshold * 2)
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)

		all := m.AllMetrics()
		require.Contains(t, all, "op")
		assert.Equal(t, int64(0), all["op"].Hits)
		assert.Equal(t, int64(0), all["op"].Misses)
		// Time was recorded; it surfaces once a classified call lands.
		require.NoError(t, m.Track("op", fastCall))
		avg := m.AverageTime("op")
		assert.Greater(t, avg, float64((testThreshold*2)/time.Millisecond)-1)
	})
}

func TestHitRate(t *testing.T) {
	m := newTestMetrics()

	assert.Equal(t, float64(0), m.HitRate("unseen"))

	require.NoError(t, m.Track("op", fastCall))
	require.NoError(t, m.Track("op", fastCall))
	require.NoError(t, m.Track("op", fastCall))
	require.NoError(t, m.Track("op", slowCall))

	assert.InDelta(t, 75.0, m.HitRate("op"), 0.001)
}

func TestAverageTime(t *testing.T) {
	m := newTestMetrics()

	assert.Equal(t, float64(0), m.AverageTime("unseen"))

	require.NoError(t, m.Track("op", slowCall))
	avg := m.AverageTime("op")
	assert.Greater(t, avg, float64((testThreshold*2)/time.Millisecond)-1)
}

func TestTrackEvict(t *testing.T) {
	m := newTestMetrics()

	require.NoError(t, m.TrackEvict("write", func() error {
		time.Sleep(testThreshold * 2)
		return nil
	}))

	all := m.AllMetrics()
	require.Contains(t, all, "write")
	assert.Equal(t, int64(1), all["write"].Evictions)
	assert.Greater(t, all["write"].AverageEvictMs, float64((testThreshold*2)/time.Millisecond)-1)

	// Eviction latency never leaks into read classification.
	assert.Equal(t, int64(0), all["write"].Hits)
	assert.Equal(t, int64(0), all["write"].Misses)
	assert.Equal(t, float64(0), m.AverageTime("write"))

	// A failed mutation still records the eviction attempt.
	wantErr := errors.New("save failed")
	assert.ErrorIs(t, m.TrackEvict("write", func() error { return wantErr }), wantErr)
	assert.Equal(t, int64(2), m.AllMetrics()["write"].Evictions)
}

func TestAllMetricsIncludesEveryTrackedOperation(t *testing.T) {
	m := newTestMetrics()

	require.NoError(t, m.Track("reads", fastCall))
	require.NoError(t, m.Track("misses-only", slowCall))
	require.NoError(t, m.TrackEvict("writes", fastCall))

	all := m.AllMetrics()
	assert.Len(t, all, 3)
	assert.Contains(t, all, "reads")
	assert.Contains(t, all, "misses-only")
	assert.Contains(t, all, "writes")
}

func TestReset(t *testing.T) {
	m := newTestMetrics()

	require.NoError(t, m.Track("op", fastCall))
	require.NoError(t, m.TrackEvict("write", fastCall))
	require.NotEmpty(t, m.AllMetrics())

	m.Reset()

	assert.Empty(t, m.AllMetrics())
	assert.Equal(t, float64(0), m.HitRate("op"))
	assert.Equal(t, float64(0), m.AverageTime("op"))

	// Counters start clean after a reset.
	require.NoError(t, m.Track("op", fastCall))
	assert.Equal(t, int64(1), m.AllMetrics()["op"].Hits)
}

func TestTrackConcurrent(t *testing.T) {
	m := newTestMetrics()

	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_ = m.Track("op", fastCall)
			}
		}()
	}
	wg.Wait()

	all := m.AllMetrics()
	assert.Equal(t, int64(goroutines*perGoroutine), all["op"].Hits+all["op"].Misses)
}

func TestThresholdFallback(t *testing.T) {
	m := NewCacheMetrics(0, zap.NewNop())
	assert.Equal(t, DefaultHitThreshold, m.threshold)
}
