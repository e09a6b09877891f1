package services

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultHitThreshold is the latency cutoff below which a tracked read is
// classified as a cache hit. Inherently approximate: a slow hit or a fast
// miss can be misclassified under load, so the counters are diagnostic
// only and never drive invalidation decisions.
const DefaultHitThreshold = 5 * time.Millisecond

// opCounters accumulates per-operation counters. All fields are updated
// with atomic operations; no lock is held across the tracked call.
type opCounters struct {
	hits       int64
	misses     int64
	totalNanos int64 // classified reads plus failed-call time
	evictions  int64
	evictNanos int64 // eviction latency, excluded from AverageTime
}

// OperationMetrics is a point-in-time view of one operation's counters.
type OperationMetrics struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hitRate"`
	AverageTimeMs  float64 `json:"avgExecutionTime"`
	Evictions      int64   `json:"evictions,omitempty"`
	AverageEvictMs float64 `json:"avgEvictionTime,omitempty"`
}

// CacheMetrics estimates cache effectiveness for cache-fronted operations
// without access to the store's real hit/miss signal. Each tracked read is
// timed and classified by the latency threshold; evict-triggering calls
// are timed but never classified.
type CacheMetrics struct {
	threshold time.Duration
	ops       sync.Map // operation name -> *opCounters
	logger    *zap.Logger
}

// NewCacheMetrics creates a metrics estimator. A zero or negative
// threshold falls back to DefaultHitThreshold.
func NewCacheMetrics(threshold time.Duration, logger *zap.Logger) *CacheMetrics {
	if threshold <= 0 {
		threshold = DefaultHitThreshold
	}
	return &CacheMetrics{
		threshold: threshold,
		logger:    logger,
	}
}

func (m *CacheMetrics) counters(op string) *opCounters {
	if c, ok := m.ops.Load(op); ok {
		return c.(*opCounters)
	}
	c, _ := m.ops.LoadOrStore(op, &opCounters{})
	return c.(*opCounters)
}

// Track runs a cache-fronted read, classifying it as hit or miss by
// elapsed wall-clock time. A failed call counts its elapsed time but is
// neither a hit nor a miss; the error is logged and returned unchanged.
func (m *CacheMetrics) Track(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	c := m.counters(op)
	atomic.AddInt64(&c.totalNanos, int64(elapsed))

	if err != nil {
		m.logger.Error("error in tracked cache operation",
			zap.String("operation", op),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}

	if elapsed < m.threshold {
		atomic.AddInt64(&c.hits, 1)
		m.logger.Debug("cache HIT", zap.String("operation", op), zap.Duration("elapsed", elapsed))
	} else {
		atomic.AddInt64(&c.misses, 1)
		m.logger.Debug("cache MISS", zap.String("operation", op), zap.Duration("elapsed", elapsed))
	}

	return nil
}

// TrackEvict runs an evict-triggering mutation, recording latency only.
// Eviction is not a hit/miss event and its time never enters AverageTime.
func (m *CacheMetrics) TrackEvict(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	c := m.counters(op)
	atomic.AddInt64(&c.evictions, 1)
	atomic.AddInt64(&c.evictNanos, int64(elapsed))

	if err != nil {
		m.logger.Error("error in evicting cache operation",
			zap.String("operation", op),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}

	m.logger.Debug("cache EVICT", zap.String("operation", op), zap.Duration("elapsed", elapsed))
	return nil
}

// HitRate returns the hit percentage for an operation, 0 when no
// classified calls were recorded.
func (m *CacheMetrics) HitRate(op string) float64 {
	c, ok := m.ops.Load(op)
	if !ok {
		return 0
	}
	counters := c.(*opCounters)
	hits := atomic.LoadInt64(&counters.hits)
	misses := atomic.LoadInt64(&counters.misses)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AverageTime returns the mean tracked latency in milliseconds, 0 when
// no classified calls were recorded.
func (m *CacheMetrics) AverageTime(op string) float64 {
	c, ok := m.ops.Load(op)
	if !ok {
		return 0
	}
	counters := c.(*opCounters)
	total := atomic.LoadInt64(&counters.hits) + atomic.LoadInt64(&counters.misses)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&counters.totalNanos)) / float64(time.Millisecond) / float64(total)
}

// AllMetrics snapshots every observed operation. The snapshot is not
// atomic across operations; a concurrent update during the walk is
// acceptable staleness.
func (m *CacheMetrics) AllMetrics() map[string]OperationMetrics {
	out := make(map[string]OperationMetrics)
	m.ops.Range(func(key, value interface{}) bool {
		op := key.(string)
		c := value.(*opCounters)

		hits := atomic.LoadInt64(&c.hits)
		misses := atomic.LoadInt64(&c.misses)
		evictions := atomic.LoadInt64(&c.evictions)

		metrics := OperationMetrics{
			Hits:      hits,
			Misses:    misses,
			Evictions: evictions,
		}
		if total := hits + misses; total > 0 {
			metrics.HitRate = float64(hits) / float64(total) * 100
			metrics.AverageTimeMs = float64(atomic.LoadInt64(&c.totalNanos)) / float64(time.Millisecond) / float64(total)
		}
		if evictions > 0 {
			metrics.AverageEvictMs = float64(atomic.LoadInt64(&c.evictNanos)) / float64(time.Millisecond) / float64(evictions)
		}

		out[op] = metrics
		return true
	})
	return out
}

// Reset clears all counters for all operations. Safe to call concurrently
// with in-flight tracked calls; whether those calls are reflected after
// the reset is last-writer-wins.
func (m *CacheMetrics) Reset() {
	m.ops.Range(func(key, _ interface{}) bool {
		m.ops.Delete(key)
		return true
	})
	m.logger.Info("cache metrics reset")
}
