package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/config"
	"github.com/redxsmoke/riddleofthedaydev/internal/infra/memory"
	pgstore "github.com/redxsmoke/riddleofthedaydev/internal/infra/postgres"
	redisstore "github.com/redxsmoke/riddleofthedaydev/internal/infra/redis"
	"github.com/redxsmoke/riddleofthedaydev/internal/infra/sqlite"
)

type stores struct {
	riddles app.RiddleRepository
	ledger  app.LedgerStore
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores builds the riddle and ledger stores for the configured driver. A configured
// Redis address moves the ledger to Redis whatever the riddle driver is.
func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (*stores, error) {
	s := &stores{}
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { db.Close() })
		s.riddles = db.Riddles()
		s.ledger = db.Ledger()
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		ttl := config.TTLDuration(cfg.Riddles.CacheTTL, 30*time.Second)
		s.riddles = memory.NewCachedRiddles(pgstore.NewRiddleRepository(pool), ttl)
		s.ledger = pgstore.NewLedgerStore(pool)
	case config.DriverMemory:
		log.Warn().Msg("using in-memory storage; state is lost on restart")
		s.riddles = memory.NewRiddleRepository()
		s.ledger = memory.NewLedgerStore()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.closers = append(s.closers, func() { client.Close() })
		s.ledger = redisstore.NewLedgerStore(client)
	}
	log.Info().Str("driver", cfg.Storage.Driver).Bool("redis_ledger", cfg.Redis.Addr != "").Msg("storage ready")
	return s, nil
}
