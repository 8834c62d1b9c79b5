package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements the Cache interface using Redis
type RedisCache struct {
	client *redis.Client
	opts   *CacheOptions
	ctx    context.Context
}

// NewRedisCache connects to addr, given as tcp://[:password@]host:port[/db].
func NewRedisCache(addr string, options ...RedisOption) (*RedisCache, error) {
	redisOpts, err := parseRedisAddr(addr)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)

	cache := &RedisCache{
		client: client,
		opts:   DefaultCacheOptions(),
		ctx:    context.Background(),
	}

	// Apply options
	for _, option := range options {
		option(cache)
	}

	// Test connection
	if err := client.Ping(cache.ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return cache, nil
}

func parseRedisAddr(addr string) (*redis.Options, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("can't parse url for redis: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("redis address %q has no host", addr)
	}
	var passwd string
	if u.User != nil {
		passwd, _ = u.User.Password()
	}
	db := 0
	if 1 < len(u.Path) {
		db, err = strconv.Atoi(u.Path[1:])
		if err != nil {
			return nil, fmt.Errorf("can't convert redis db %q: %w", u.Path[1:], err)
		}
	}
	network := u.Scheme
	if network == "" || network == "redis" {
		network = "tcp"
	}

	return &redis.Options{
		Network:  network,
		Addr:     u.Host,
		Password: passwd,
		DB:       db,
	}, nil
}

// RedisOption is a function that configures Redis cache options
type RedisOption func(*RedisCache)

// WithRedisOptions sets cache options
func WithRedisOptions(opts *CacheOptions) RedisOption {
	return func(rc *RedisCache) {
		rc.opts = opts
	}
}

// WithContext sets the context for cache operations
func WithContext(ctx context.Context) RedisOption {
	return func(rc *RedisCache) {
		rc.ctx = ctx
	}
}

func (rc *RedisCache) SetRatesEnvelope(envelope *RatesEnvelope) error {
	if envelope == nil {
		return ErrNilEnvelope
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal rates envelope: %w", err)
	}

	return rc.client.Set(rc.ctx, RatesEnvelopeKey, data, rc.opts.Retention).Err()
}

func (rc *RedisCache) GetRatesEnvelope() (*RatesEnvelope, error) {
	data, err := rc.client.Get(rc.ctx, RatesEnvelopeKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rates from Redis: %w", err)
	}

	return decodeEnvelope(data)
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
