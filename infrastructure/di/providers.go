package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"papertrail/application/ports"
	"papertrail/application/services"
	"papertrail/infrastructure/cache"
	"papertrail/infrastructure/config"
	"papertrail/infrastructure/persistence/dynamodb"
	"papertrail/pkg/auth"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideNoteRepository creates a note repository
func ProvideNoteRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.NoteRepository {
	return dynamodb.NewNoteRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger)
}

// ProvidePermissionRepository creates a permission repository
func ProvidePermissionRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.PermissionRepository {
	return dynamodb.NewPermissionRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger)
}

// ProvideCacheStore creates the cache store selected by configuration.
func ProvideCacheStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.CacheStore, error) {
	switch cfg.CacheBackend {
	case "redis":
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		return cache.NewRedisStore(ctx, redisCfg, logger)
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.CacheBackend)
	}
}

// ProvideCacheMetrics creates the cache metrics recorder
func ProvideCacheMetrics(cfg *config.Config, logger *zap.Logger) *services.CacheMetrics {
	return services.NewCacheMetrics(cfg.HitThreshold, logger)
}

// ProvideNoteService creates the note service
func ProvideNoteService(
	noteRepo ports.NoteRepository,
	grantRepo ports.PermissionRepository,
	store ports.CacheStore,
	metrics *services.CacheMetrics,
	cfg *config.Config,
	logger *zap.Logger,
) *services.NoteService {
	return services.NewNoteService(noteRepo, grantRepo, store, metrics, logger, cfg.NoteTTL, cfg.ListTTL)
}

// ProvideCacheMonitor creates the cache monitor
func ProvideCacheMonitor(store ports.CacheStore, notes *services.NoteService, logger *zap.Logger) *services.CacheMonitor {
	return services.NewCacheMonitor(store, notes, logger)
}

// ProvideJWTValidator creates the JWT validator used by the auth middleware
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = "development-secret-change-in-production"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
	})
}
