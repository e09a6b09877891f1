package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"papertrail/application/services"
	"papertrail/pkg/auth"
	pkgerrors "papertrail/pkg/errors"
)

// CacheAdminHandler exposes cache statistics and management endpoints.
type CacheAdminHandler struct {
	monitor *services.CacheMonitor
	metrics *services.CacheMetrics
	logger  *zap.Logger
}

// NewCacheAdminHandler creates a new cache admin handler
func NewCacheAdminHandler(monitor *services.CacheMonitor, metrics *services.CacheMetrics, logger *zap.Logger) *CacheAdminHandler {
	return &CacheAdminHandler{
		monitor: monitor,
		metrics: metrics,
		logger:  logger,
	}
}

// Stats handles GET /admin/cache/stats
func (h *CacheAdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monitor.Stats(r.Context())
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

// Metrics handles GET /admin/cache/metrics
func (h *CacheAdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.metrics.AllMetrics())
}

// ResetMetrics handles POST /admin/cache/metrics/reset
func (h *CacheAdminHandler) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Reset()
	h.logger.Info("Cache metrics reset")
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Cache metrics reset successfully",
	})
}

// Dashboard handles GET /admin/cache/dashboard, combining store stats and
// per-operation metrics into a single report.
func (h *CacheAdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monitor.Stats(r.Context())
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"cacheStats":  stats,
		"performance": h.metrics.AllMetrics(),
	})
}

// ClearNamespace handles DELETE /admin/cache/{namespace}
func (h *CacheAdminHandler) ClearNamespace(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	if namespace == "" {
		h.respondError(w, http.StatusBadRequest, "Namespace is required")
		return
	}

	if err := h.monitor.ClearNamespace(r.Context(), namespace); err != nil {
		h.respondAppError(w, err)
		return
	}

	h.logger.Info("Cache namespace cleared", zap.String("namespace", namespace))
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Cache cleared: " + namespace,
	})
}

// ClearAll handles DELETE /admin/cache
func (h *CacheAdminHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.ClearAll(r.Context()); err != nil {
		h.respondAppError(w, err)
		return
	}

	h.logger.Info("All cache namespaces cleared")
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "All caches cleared",
	})
}

// WarmUp handles POST /admin/cache/warmup. Preloads the caller's note lists.
func (h *CacheAdminHandler) WarmUp(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.monitor.WarmUp(r.Context(), userCtx.UserID); err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Cache warmed up",
		"userId":  userCtx.UserID,
	})
}

func (h *CacheAdminHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *CacheAdminHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

func (h *CacheAdminHandler) respondAppError(w http.ResponseWriter, err error) {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		h.respondError(w, appErr.HTTPStatus, appErr.Message)
		return
	}
	h.logger.Error("Unhandled error", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "Internal server error")
}
