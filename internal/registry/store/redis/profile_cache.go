package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "dataspf:"

type Options struct {
	Addr     string
	Password string
	DB       int
}

// ProfileCache stores resolved LINE display names in Redis so that several
// server instances share lookups.
type ProfileCache struct {
	client goredis.UniversalClient
}

func NewProfileCache(client goredis.UniversalClient) *ProfileCache {
	return &ProfileCache{client: client}
}

// Dial connects and pings. The caller owns the returned client.
func Dial(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

func (c *ProfileCache) Get(ctx context.Context, key string) (string, bool, error) {
	name, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cached profile: %w", err)
	}
	return name, true, nil
}

func (c *ProfileCache) Set(ctx context.Context, key, name string, ttl time.Duration) error {
	if err := c.client.Set(ctx, keyPrefix+key, name, ttl).Err(); err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}
