package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/config"
	"github.com/isdelr/schedpanel/internal/database"
	"github.com/isdelr/schedpanel/internal/events"
)

// openSharedStore connects to the cluster event store, migrating SQL stores on the way. It
// returns a nil store when the panel runs single-node.
func openSharedStore(ctx context.Context, cfg *config.Config) (events.SharedStore, func(), error) {
	switch cfg.ClusterDriver {
	case config.ClusterNone:
		return nil, func() {}, nil

	case config.ClusterSQLite, config.ClusterPostgres:
		db, err := database.New(cfg.ClusterDriver, cfg.ClusterDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, db, cfg.ClusterDriver); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().Str("driver", cfg.ClusterDriver).Msg("Shared event store ready")
		return database.NewEventStore(db, cfg.ClusterDriver), func() { db.Close() }, nil

	case config.ClusterRedis:
		client, err := newRedisClient(cfg.ClusterDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		log.Info().Str("driver", cfg.ClusterDriver).Msg("Shared event store ready")
		return database.NewRedisEventStore(client, ""), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("%w: unsupported cluster driver %q", config.ErrInvalid, cfg.ClusterDriver)
}

// newRedisClient accepts a redis:// URL or a bare host:port.
func newRedisClient(dsn string) (*redis.Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: redis address is required", config.ErrInvalid)
	}
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		opts = &redis.Options{Addr: dsn}
	}
	return redis.NewClient(opts), nil
}
