package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/pkg/logger"
)

// Client wraps redis.Client with logging helpers
type Client struct {
	*redis.Client
	url    string
	logger *logger.Logger
}

// ClientOption represents an option for creating a new Redis client
type ClientOption func(*clientOptions)

type clientOptions struct {
	pingTimeout time.Duration
	skipPing    bool
}

// WithPingTimeout bounds the connection check done by NewClient
func WithPingTimeout(d time.Duration) ClientOption {
	return func(opts *clientOptions) {
		opts.pingTimeout = d
	}
}

// WithoutPing skips the connection check; the first command will dial lazily
func WithoutPing() ClientOption {
	return func(opts *clientOptions) {
		opts.skipPing = true
	}
}

// NewClient creates a new Redis client from URL with options
func NewClient(redisURL string, log *logger.Logger, opts ...ClientOption) (*Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}

	if log == nil {
		log = logger.GetGlobalLogger()
	}

	options := &clientOptions{pingTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(options)
	}

	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := &Client{
		Client: redis.NewClient(redisOptions),
		url:    redisURL,
		logger: log.WithComponent("redisx"),
	}

	if !options.skipPing {
		ctx, cancel := context.WithTimeout(context.Background(), options.pingTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	client.logger.Info("Redis client ready",
		zap.String("addr", redisOptions.Addr),
		zap.Int("db", redisOptions.DB),
		zap.Int("pool_size", redisOptions.PoolSize),
	)

	return client, nil
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.Client.Close()
}

// HealthCheck performs a health check on the Redis connection
func (c *Client) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := c.Ping(ctx).Err()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Redis health check failed",
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return err
	}

	c.logger.Debug("Redis health check passed", zap.Duration("duration", duration))
	return nil
}

// SetWithExpiration sets a key-value pair; zero expiration keeps the key forever
func (c *Client) SetWithExpiration(ctx context.Context, key string, value any, expiration time.Duration) error {
	start := time.Now()
	err := c.Set(ctx, key, value, expiration).Err()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Failed to set key",
			zap.String("key", key),
			zap.Duration("expiration", expiration),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Set key",
		zap.String("key", key),
		zap.Duration("expiration", expiration),
		zap.Duration("duration", duration),
	)
	return nil
}

// GetWithLogging gets a value with logging. A missing key returns redis.Nil.
func (c *Client) GetWithLogging(ctx context.Context, key string) (string, error) {
	start := time.Now()
	result := c.Get(ctx, key)
	duration := time.Since(start)

	if err := result.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			c.logger.Debug("Key not found",
				zap.String("key", key),
				zap.Duration("duration", duration),
			)
		} else {
			c.logger.Error("Failed to get key",
				zap.String("key", key),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
		return "", err
	}

	c.logger.Debug("Got key",
		zap.String("key", key),
		zap.Duration("duration", duration),
	)
	return result.Val(), nil
}

// DelWithLogging deletes keys with logging
func (c *Client) DelWithLogging(ctx context.Context, keys ...string) (int64, error) {
	start := time.Now()
	result := c.Del(ctx, keys...)
	duration := time.Since(start)

	if err := result.Err(); err != nil {
		c.logger.Error("Failed to delete keys",
			zap.Strings("keys", keys),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return 0, err
	}

	c.logger.Debug("Deleted keys",
		zap.Strings("keys", keys),
		zap.Int64("deleted_count", result.Val()),
		zap.Duration("duration", duration),
	)
	return result.Val(), nil
}

// URL returns the connection URL the client was built from
func (c *Client) URL() string {
	return c.url
}
