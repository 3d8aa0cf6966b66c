package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/polkiloo/withdrawgate/internal/config"
	"github.com/polkiloo/withdrawgate/internal/usecase"
)

// Module wires the redis client and the notification dispatcher.
var Module = fx.Options(
	fx.Provide(newRedisClient, newNotifier),
	fx.Invoke(registerLifecycle),
)

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func newNotifier(rdb *redis.Client, logger *slog.Logger) usecase.Notifier {
	return NewRedisDispatcher(rdb, logger)
}

func registerLifecycle(lc fx.Lifecycle, rdb *redis.Client, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				logger.Warn("redis unavailable, notifications will fail until it recovers", slog.String("error", err.Error()))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})
}
