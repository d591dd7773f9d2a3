// Package di wires the application's dependencies. The container is built
// by plain provider functions called in order; there is no code-generated
// injector.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mindlink-backend/application/ports"
	"mindlink-backend/application/services"
	"mindlink-backend/infrastructure/config"
	"mindlink-backend/infrastructure/persistence/dynamodb"
	"mindlink-backend/infrastructure/persistence/memory"
	"mindlink-backend/pkg/auth"
	"mindlink-backend/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	MapRepo     ports.MapRepository
	UserRepo    ports.UserRepository
	Tokens      *auth.JWTService
	RateLimiter *auth.TokenBucketLimiter
	Metrics     *observability.Metrics
	AuthService *services.AuthService
	MapService  *services.MapService
}

// InitializeContainer creates a fully wired container.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	mapRepo, userRepo, err := ProvideRepositories(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens := ProvideJWTService(cfg)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		MapRepo:     mapRepo,
		UserRepo:    userRepo,
		Tokens:      tokens,
		RateLimiter: auth.NewTokenBucketLimiter(100, time.Minute),
		Metrics:     metrics,
		AuthService: services.NewAuthService(userRepo, tokens, logger),
		MapService:  services.NewMapService(mapRepo, userRepo, logger),
	}, nil
}

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideRepositories selects the persistence driver.
func ProvideRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.MapRepository, ports.UserRepository, error) {
	switch cfg.PersistenceDriver {
	case "memory":
		logger.Warn("using in-memory persistence; data will not survive restarts")
		return memory.NewMapRepository(), memory.NewUserRepository(), nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := ProvideDynamoDBClient(awsCfg)
		return dynamodb.NewMapRepository(client, cfg.MapsTable, cfg.OwnerIndexName, logger),
			dynamodb.NewUserRepository(client, cfg.UsersTable, cfg.EmailIndexName, logger),
			nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence driver %q", cfg.PersistenceDriver)
	}
}

// ProvideDynamoDBClient creates a DynamoDB client.
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideJWTService creates the session token service.
func ProvideJWTService(cfg *config.Config) *auth.JWTService {
	secret := cfg.JWTSecret
	if secret == "" {
		// Load() rejects this in production.
		secret = "development-secret-change-in-production"
	}
	return auth.NewJWTService(secret, cfg.JWTIssuer, []string{"mindlink-api"}, cfg.JWTExpiry)
}
