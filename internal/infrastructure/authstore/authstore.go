// Package authstore selects the backend that holds rate-limit records and
// email tokens.
package authstore

import (
	"context"
	"fmt"
	"time"

	"github.com/valid-names/internal/config"
	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/infrastructure/dynamo"
	"github.com/valid-names/internal/infrastructure/memory"
	"github.com/valid-names/internal/infrastructure/postgres"
	redisstore "github.com/valid-names/internal/infrastructure/redis"
)

type AttemptStore interface {
	Acquire(ctx context.Context, a domain.RateLimitAttempt) (count int, allowed bool, err error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type TokenStore interface {
	Issue(ctx context.Context, t *domain.EmailToken) error
	Get(ctx context.Context, tokenHash string) (*domain.EmailToken, error)
	Consume(ctx context.Context, kind domain.TokenKind, tokenHash string, now time.Time) (*domain.EmailToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Stores is an opened backend. Close releases its connections.
type Stores struct {
	Driver   string
	Attempts AttemptStore
	Tokens   TokenStore
	Close    func()
}

// Open connects the backend named by cfg.AuthStore. dynamoClient is only
// used by the dynamo driver.
func Open(ctx context.Context, cfg *config.Config, dynamoClient dynamo.API) (*Stores, error) {
	switch cfg.AuthStore {
	case config.StoreDynamo:
		if dynamoClient == nil {
			return nil, fmt.Errorf("auth store %q needs a DynamoDB client", cfg.AuthStore)
		}
		return &Stores{
			Driver:   cfg.AuthStore,
			Attempts: dynamo.NewRateLimitRepo(dynamoClient, cfg.DynamoTables.RateLimits),
			Tokens:   dynamo.NewTokenRepo(dynamoClient, cfg.DynamoTables.EmailTokens),
			Close:    func() {},
		}, nil
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Stores{
			Driver:   cfg.AuthStore,
			Attempts: postgres.NewAttemptStore(pool),
			Tokens:   postgres.NewTokenStore(pool),
			Close:    pool.Close,
		}, nil
	case config.StoreRedis:
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Driver:   cfg.AuthStore,
			Attempts: redisstore.NewAttemptStore(client, ""),
			Tokens:   redisstore.NewTokenStore(client, ""),
			Close:    func() { _ = client.Close() },
		}, nil
	case config.StoreMemory:
		return &Stores{
			Driver:   cfg.AuthStore,
			Attempts: memory.NewAttemptStore(),
			Tokens:   memory.NewTokenStore(),
			Close:    func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown auth store %q", cfg.AuthStore)
	}
}
