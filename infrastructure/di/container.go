package di

import (
	"go.uber.org/zap"

	"papertrail/application/ports"
	"papertrail/application/services"
	"papertrail/infrastructure/config"
	"papertrail/pkg/auth"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	NoteRepo     ports.NoteRepository
	GrantRepo    ports.PermissionRepository
	Cache        ports.CacheStore
	Metrics      *services.CacheMetrics
	Notes        *services.NoteService
	Monitor      *services.CacheMonitor
	JWTValidator *auth.JWTValidator
}

// Shutdown releases resources held by the container.
func (c *Container) Shutdown() {
	type closer interface{ Close() error }
	if cl, ok := c.Cache.(closer); ok {
		if err := cl.Close(); err != nil {
			c.Logger.Warn("Failed to close cache store", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
}
