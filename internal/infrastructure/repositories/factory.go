package repositories

import (
	"context"
	"time"

	"djbook/internal/core/ports"
	"djbook/internal/infrastructure/repositories/memory"
	pgrepo "djbook/internal/infrastructure/repositories/postgres"
	redisrepo "djbook/internal/infrastructure/repositories/redis"
	"djbook/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// RepositoryFactory creates repositories for the configured backend and
// falls back to memory when the backend cannot be reached.
type RepositoryFactory struct {
	backend     string
	redisClient *redis.Client
	pgPool      *pgxpool.Pool
	venueTTL    time.Duration
	lockTTL     time.Duration
	logger      *zap.SugaredLogger

	// memory backend shares one instance per repository
	users    ports.UserRepository
	venues   ports.VenueRepository
	bookings ports.BookingRepository
	locker   ports.UserLocker
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	f := &RepositoryFactory{
		backend:  cfg.Storage.Backend,
		venueTTL: cfg.Cache.VenueTTL,
		lockTTL:  cfg.Abuse.LockTTL,
		logger:   logger,
	}

	switch cfg.Storage.Backend {
	case BackendRedis:
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories", "error", err)
			f.backend = BackendMemory
			break
		}
		f.redisClient = client

	case BackendPostgres:
		pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.ConnectTimeout, logger)
		if err != nil {
			logger.Warnw("failed to connect to Postgres, falling back to memory repositories", "error", err)
			f.backend = BackendMemory
			break
		}
		if cfg.Postgres.MigrateOnStart {
			if err := pgrepo.Migrate(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		f.pgPool = pool
	}

	if f.backend == BackendMemory {
		f.users = memory.NewMemoryUserRepository()
		f.venues = memory.NewMemoryVenueRepository()
		f.bookings = memory.NewMemoryBookingRepository()
		f.locker = memory.NewKeyedLocker()
	}

	logger.Infow("repositories ready", "backend", f.backend)
	return f, nil
}

// Backend reports the backend actually in use after any fallback.
func (f *RepositoryFactory) Backend() string { return f.backend }

// RedisClient is non-nil only for the redis backend.
func (f *RepositoryFactory) RedisClient() *redis.Client { return f.redisClient }

func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	switch f.backend {
	case BackendRedis:
		return redisrepo.NewRedisUserRepository(f.redisClient)
	case BackendPostgres:
		return pgrepo.NewUserRepository(f.pgPool)
	}
	return f.users
}

// CreateVenueRepository wraps the backend repository in a TTL read cache.
func (f *RepositoryFactory) CreateVenueRepository() ports.VenueRepository {
	var base ports.VenueRepository
	switch f.backend {
	case BackendRedis:
		base = redisrepo.NewRedisVenueRepository(f.redisClient)
	case BackendPostgres:
		base = pgrepo.NewVenueRepository(f.pgPool)
	default:
		base = f.venues
	}
	return NewCachedVenueRepository(base, f.venueTTL)
}

func (f *RepositoryFactory) CreateBookingRepository() ports.BookingRepository {
	switch f.backend {
	case BackendRedis:
		return redisrepo.NewRedisBookingRepository(f.redisClient)
	case BackendPostgres:
		return pgrepo.NewBookingRepository(f.pgPool)
	}
	return f.bookings
}

// CreateUserLocker returns a redis lock when instances share a redis,
// otherwise an in-process keyed lock. Postgres relies on the version column
// across instances and the keyed lock within one.
func (f *RepositoryFactory) CreateUserLocker() ports.UserLocker {
	if f.backend == BackendRedis {
		return redisrepo.NewUserLocker(f.redisClient, f.lockTTL)
	}
	if f.locker == nil {
		f.locker = memory.NewKeyedLocker()
	}
	return f.locker
}

// Close closes backend connections
func (f *RepositoryFactory) Close() error {
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck pings the backend
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	switch {
	case f.redisClient != nil:
		return f.redisClient.Ping(ctx).Err()
	case f.pgPool != nil:
		return f.pgPool.Ping(ctx)
	}
	return nil
}
