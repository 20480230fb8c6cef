package cmd

import (
	"context"
	"fmt"

	"github.com/Sternrassler/catalog-loader/pkg/client"
	"github.com/Sternrassler/catalog-loader/pkg/loader"
	"github.com/Sternrassler/catalog-loader/pkg/scroll"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// session bundles the client and controller a command runs against.
type session struct {
	client     *client.Client
	controller *loader.Controller
	redis      *redis.Client
}

func clientConfig(v *viper.Viper) client.Config {
	cfg := client.DefaultConfig()
	cfg.BaseURL = v.GetString(keyBaseURL)
	cfg.Resource = v.GetString(keyResource)
	cfg.ItemsKey = v.GetString(keyItemsKey)
	cfg.UserAgent = "catalog-loader/" + Version
	cfg.RequestsPerSecond = v.GetFloat64(keyRPS)
	cfg.Burst = v.GetInt(keyBurst)
	cfg.MaxRetries = v.GetInt(keyRetries)
	cfg.Timeout = v.GetDuration(keyTimeout)
	return cfg
}

func newClient(ctx context.Context, v *viper.Viper) (*client.Client, *redis.Client, error) {
	cfg := clientConfig(v)

	var rdb *redis.Client
	if addr := v.GetString(keyRedisAddr); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
		}
		cfg.Redis = rdb
	}

	c, err := client.New(cfg)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, fmt.Errorf("creating catalog client: %w", err)
	}
	return c, rdb, nil
}

func newSession(ctx context.Context, v *viper.Viper, monitor *scroll.Monitor) (*session, error) {
	c, rdb, err := newClient(ctx, v)
	if err != nil {
		return nil, err
	}

	ctrl, err := loader.New(loader.Config{
		Fetcher:  c,
		PageSize: v.GetInt(keyPageSize),
		Monitor:  monitor,
	})
	if err != nil {
		c.Close()
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("creating loader: %w", err)
	}

	return &session{client: c, controller: ctrl, redis: rdb}, nil
}

func (s *session) Close() {
	s.controller.Stop()
	s.controller.Wait()
	s.client.Close()
	if s.redis != nil {
		s.redis.Close()
	}
}
