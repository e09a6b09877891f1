package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"papertrail/application/ports"
	pkgerrors "papertrail/pkg/errors"
)

// knownNamespaces are the namespaces the monitor reports on and is
// allowed to clear.
var knownNamespaces = []string{NamespaceNote, NamespaceUserNotes, NamespaceSharedNotes}

// CacheMonitor provides the administrative view over the cache store:
// size stats, manual flushes, and warm-up. It never participates in
// invalidation; that is NoteService's job alone.
type CacheMonitor struct {
	cache  ports.CacheStore
	notes  *NoteService
	logger *zap.Logger
}

// NewCacheMonitor creates a cache monitor.
func NewCacheMonitor(cache ports.CacheStore, notes *NoteService, logger *zap.Logger) *CacheMonitor {
	return &CacheMonitor{
		cache:  cache,
		notes:  notes,
		logger: logger,
	}
}

// Stats returns per-namespace entry counts plus the total.
func (m *CacheMonitor) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{}, len(knownNamespaces)+1)
	total := 0
	for _, ns := range knownNamespaces {
		keys, err := m.cache.Keys(ctx, ns+"::*")
		if err != nil {
			return nil, pkgerrors.NewUnavailableError("cache").WithCause(err)
		}
		stats[fmt.Sprintf("%s_cache_size", ns)] = len(keys)
		total += len(keys)
	}
	stats["total_keys"] = total
	return stats, nil
}

// ClearNamespace drops every entry in one namespace.
func (m *CacheMonitor) ClearNamespace(ctx context.Context, namespace string) error {
	if !isKnownNamespace(namespace) {
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown cache namespace: %s", namespace))
	}
	if err := m.cache.EvictAll(ctx, namespace); err != nil {
		return pkgerrors.NewUnavailableError("cache").WithCause(err)
	}
	m.logger.Info("cache namespace cleared", zap.String("namespace", namespace))
	return nil
}

// ClearAll drops every entry in every namespace.
func (m *CacheMonitor) ClearAll(ctx context.Context) error {
	for _, ns := range knownNamespaces {
		if err := m.ClearNamespace(ctx, ns); err != nil {
			return err
		}
	}
	return nil
}

// WarmUp pre-populates a user's list views through the regular
// read-through path, typically right after login.
func (m *CacheMonitor) WarmUp(ctx context.Context, userID string) error {
	if _, err := m.notes.GetUserNotes(ctx, userID); err != nil {
		return err
	}
	if _, err := m.notes.GetSharedNotes(ctx, userID); err != nil {
		return err
	}
	m.logger.Info("cache warmed up", zap.String("userID", userID))
	return nil
}

func isKnownNamespace(namespace string) bool {
	for _, ns := range knownNamespaces {
		if ns == namespace {
			return true
		}
	}
	return false
}
