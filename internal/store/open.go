package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"medstore/m/internal/config"
	"medstore/m/internal/database"
	"medstore/m/internal/migrations"
)

// Open builds the Store for the configured driver.
func Open(ctx context.Context, cfg config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return New(NewMemory()), nil
	case config.DriverBolt:
		b, err := OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return New(b), nil
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		return New(NewRedis(client, cfg.RedisPrefix)), nil
	case config.DriverSQLite, "":
		db, err := database.Connect(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.Run(db); err != nil {
			db.Close()
			return nil, err
		}
		return New(NewSQLite(db)), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
