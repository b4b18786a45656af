package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/config"
	"github.com/sells-group/forecast-cli/internal/store"
)

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = "forecast.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.DatabaseURL, nil)
	case "mongo":
		return store.NewMongo(ctx, c.DatabaseURL, c.MongoDatabase)
	case "redis":
		return store.NewRedis(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}
