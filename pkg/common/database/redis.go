package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/clinical-insights/pkg/common/config"
	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
)

func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  cfg.RedisTimeout,
		ReadTimeout:  cfg.RedisTimeout,
		WriteTimeout: cfg.RedisTimeout,
	}
}

// OpenRedis returns a client only if the server answers a ping within ctx.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(RedisOptions(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis %s: %w", client.Options().Addr, err)
	}
	logger.Log.WithField("addr", client.Options().Addr).Info("Connected to Redis")
	return client, nil
}
