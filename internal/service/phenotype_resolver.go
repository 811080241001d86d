package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/pkg/external"
)

// PredictionStore is the distributed cache tier for phenotype predictions
type PredictionStore interface {
	GetPrediction(ctx context.Context, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, bool, error)
	SetPrediction(ctx context.Context, req *domain.PhenotypeRequest, data *domain.PhenotypePrediction, ttl time.Duration) error
	InvalidatePrediction(ctx context.Context, req *domain.PhenotypeRequest) error
}

// CachedPhenotypeResolver fronts a domain.PhenotypePredictor with an in-memory LRU and an
// optional Redis tier
type CachedPhenotypeResolver struct {
	predictor domain.PhenotypePredictor

	memoryCache *expirable.LRU[string, *domain.PhenotypePrediction] // Tier 1
	store       PredictionStore                                     // Tier 2, may be nil
	storeTTL    time.Duration

	semaphore chan struct{}

	logger  *logrus.Logger
	stats   ResolverStats
	statsMu sync.RWMutex
}

// ResolverStats represents cache performance statistics
type ResolverStats struct {
	MemoryHits     int64     `json:"memory_hits"`
	MemoryMisses   int64     `json:"memory_misses"`
	StoreHits      int64     `json:"store_hits"`
	StoreMisses    int64     `json:"store_misses"`
	PredictorCalls int64     `json:"predictor_calls"`
	TotalRequests  int64     `json:"total_requests"`
	ErrorCount     int64     `json:"error_count"`
	LastReset      time.Time `json:"last_reset"`
}

// PhenotypeResolverConfig represents configuration for the phenotype resolver
type PhenotypeResolverConfig struct {
	MemoryCacheTTL time.Duration `json:"memory_cache_ttl"`
	StoreTTL       time.Duration `json:"store_ttl"`
	MaxMemorySize  int           `json:"max_memory_size"`
	MaxConcurrency int           `json:"max_concurrency"`
}

type statKind int

const (
	statMemoryHit statKind = iota
	statMemoryMiss
	statStoreHit
	statStoreMiss
	statPredictorCall
	statRequest
	statError
)

// NewCachedPhenotypeResolver creates a resolver; store may be nil when Redis is disabled
func NewCachedPhenotypeResolver(
	config PhenotypeResolverConfig,
	predictor domain.PhenotypePredictor,
	store PredictionStore,
	logger *logrus.Logger,
) *CachedPhenotypeResolver {
	if config.MemoryCacheTTL == 0 {
		config.MemoryCacheTTL = 15 * time.Minute
	}
	if config.StoreTTL == 0 {
		config.StoreTTL = 24 * time.Hour
	}
	if config.MaxMemorySize == 0 {
		config.MaxMemorySize = 500
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}

	return &CachedPhenotypeResolver{
		predictor:   predictor,
		memoryCache: expirable.NewLRU[string, *domain.PhenotypePrediction](config.MaxMemorySize, nil, config.MemoryCacheTTL),
		store:       store,
		storeTTL:    config.StoreTTL,
		semaphore:   make(chan struct{}, config.MaxConcurrency),
		logger:      logger,
		stats:       ResolverStats{LastReset: time.Now()},
	}
}

// Resolve returns a prediction for the request, consulting the cache tiers first
func (r *CachedPhenotypeResolver) Resolve(ctx context.Context, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, error) {
	r.increment(statRequest)
	if req == nil {
		r.increment(statError)
		return nil, fmt.Errorf("phenotype request cannot be nil")
	}

	key := external.PredictionKey(req)

	if prediction, ok := r.memoryCache.Get(key); ok {
		r.increment(statMemoryHit)
		r.logger.WithField("cache_tier", "memory").Debug("Phenotype prediction cache hit")
		return prediction, nil
	}
	r.increment(statMemoryMiss)

	if r.store != nil {
		prediction, found, err := r.store.GetPrediction(ctx, req)
		if err != nil {
			r.logger.WithError(err).Warn("Phenotype prediction store lookup failed")
		}
		if found {
			r.increment(statStoreHit)
			r.memoryCache.Add(key, prediction)
			return prediction, nil
		}
		r.increment(statStoreMiss)
	}

	if r.predictor == nil {
		r.increment(statError)
		return nil, domain.ErrPhenotypeUnavailable
	}

	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-ctx.Done():
		r.increment(statError)
		return nil, ctx.Err()
	}

	r.increment(statPredictorCall)
	prediction, err := r.predictor.Predict(ctx, req)
	if err != nil {
		r.increment(statError)
		return nil, fmt.Errorf("failed to predict phenotype: %w", err)
	}

	r.memoryCache.Add(key, prediction)
	if r.store != nil {
		if err := r.store.SetPrediction(ctx, req, prediction, r.storeTTL); err != nil {
			r.logger.WithError(err).Warn("Failed to store phenotype prediction")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"predicted":  prediction.Predicted,
		"confidence": prediction.Confidence,
		"source":     prediction.Source,
	}).Info("Resolved phenotype prediction")

	return prediction, nil
}

// Apply fills the genotype fields of input from a prediction when the clinician has not
// entered a genotype. A failed prediction leaves the input at genotype unknown and is
// returned alongside a nil prediction.
func (r *CachedPhenotypeResolver) Apply(ctx context.Context, input *domain.PatientInput, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, error) {
	if input.Genotype == domain.GenotypeKnown {
		return nil, nil
	}

	prediction, err := r.Resolve(ctx, req)
	if err != nil {
		r.logger.WithError(err).Warn("Phenotype prediction unavailable, treating genotype as unknown")
		input.Genotype, input.Phenotype = domain.GenotypeUnknown, domain.PhenotypeExtensive
		return nil, err
	}

	input.Genotype, input.Phenotype = prediction.Resolution()
	return prediction, nil
}

// Invalidate drops the cached prediction for req from both tiers
func (r *CachedPhenotypeResolver) Invalidate(ctx context.Context, req *domain.PhenotypeRequest) error {
	if req == nil {
		return fmt.Errorf("phenotype request cannot be nil")
	}
	r.memoryCache.Remove(external.PredictionKey(req))
	if r.store != nil {
		return r.store.InvalidatePrediction(ctx, req)
	}
	return nil
}

// Stats returns a snapshot of cache statistics
func (r *CachedPhenotypeResolver) Stats() ResolverStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}

func (r *CachedPhenotypeResolver) increment(kind statKind) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	switch kind {
	case statMemoryHit:
		r.stats.MemoryHits++
	case statMemoryMiss:
		r.stats.MemoryMisses++
	case statStoreHit:
		r.stats.StoreHits++
	case statStoreMiss:
		r.stats.StoreMisses++
	case statPredictorCall:
		r.stats.PredictorCalls++
	case statRequest:
		r.stats.TotalRequests++
	case statError:
		r.stats.ErrorCount++
	}
}
