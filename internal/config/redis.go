// Copyright (c) 2025 Northbound System
package config

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/northbound/ragcore/internal/logger"
)

// NewRedisClient dials Redis using the resolved Config and verifies the
// connection with a ping before returning.
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	logger.Printf("config: connecting to redis addr=%s db=%d passwordSet=%v", cfg.RedisAddr, cfg.RedisDB, cfg.RedisPassword != "")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Errorf("config: redis ping failed: %v", err)
		return nil, err
	}

	logger.Printf("config: redis connected")
	return client, nil
}
