package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scdaid-mcp-server/internal/domain"
)

// CacheClient wraps a Redis client for cached phenotype predictions
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// CachedPrediction represents a cached prediction with metadata
type CachedPrediction struct {
	Data      *domain.PhenotypePrediction `json:"data"`
	CachedAt  time.Time                   `json:"cached_at"`
	ExpiresAt time.Time                   `json:"expires_at"`
}

// NewCacheClient creates a new cache client and checks the connection
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewCacheClientFromRedis(client, config.DefaultTTL), nil
}

// NewCacheClientFromRedis wraps an existing client
func NewCacheClientFromRedis(client *redis.Client, defaultTTL time.Duration) *CacheClient {
	if defaultTTL == 0 {
		defaultTTL = 24 * time.Hour
	}
	return &CacheClient{redis: client, defaultTTL: defaultTTL}
}

// GetPrediction retrieves a cached prediction for the request
func (c *CacheClient) GetPrediction(ctx context.Context, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, bool, error) {
	key := PredictionKey(req)

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	var cached CachedPrediction
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// corrupted entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetPrediction caches a prediction; a zero ttl uses the default
func (c *CacheClient) SetPrediction(ctx context.Context, req *domain.PhenotypeRequest, data *domain.PhenotypePrediction, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := CachedPrediction{
		Data:      data,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction cache data: %w", err)
	}

	return c.redis.Set(ctx, PredictionKey(req), jsonData, ttl).Err()
}

// InvalidatePrediction removes the cached prediction for the request
func (c *CacheClient) InvalidatePrediction(ctx context.Context, req *domain.PhenotypeRequest) error {
	return c.redis.Del(ctx, PredictionKey(req)).Err()
}

// Ping checks if Redis connection is alive
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// PredictionKey hashes the request features into a cache key. The features are clinical
// values, so only a digest is stored.
func PredictionKey(req *domain.PhenotypeRequest) string {
	data := fmt.Sprintf("%.2f:%.2f:%.2f:%s:%t:%s:%s",
		req.Age, req.Weight, req.EGFR, req.Sex, req.CYP2D6Inhibitor,
		req.PriorCodeineResponse, req.PriorTramadolResponse)

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("phenotype:prediction:%x", hash[:8])
}
