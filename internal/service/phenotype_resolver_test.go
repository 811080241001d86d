package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/pkg/external"
)

// MockPhenotypePredictor is a mock implementation of domain.PhenotypePredictor
type MockPhenotypePredictor struct {
	mock.Mock
}

func (m *MockPhenotypePredictor) Predict(ctx context.Context, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PhenotypePrediction), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testPhenotypeRequest() *domain.PhenotypeRequest {
	return &domain.PhenotypeRequest{Age: 28, Weight: 65, EGFR: 100, Sex: "M"}
}

func TestCachedPhenotypeResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory_Cache_Hit", func(t *testing.T) {
		predictor := new(MockPhenotypePredictor)
		req := testPhenotypeRequest()
		predictor.On("Predict", mock.Anything, req).Return(&domain.PhenotypePrediction{
			Predicted:  domain.PhenotypePoor,
			Confidence: domain.ConfidenceHigh,
			Source:     external.ServicePhenotypeAPI,
		}, nil)

		resolver := NewCachedPhenotypeResolver(PhenotypeResolverConfig{}, predictor, nil, quietLogger())

		first, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.PhenotypePoor, first.Predicted)

		second, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		predictor.AssertNumberOfCalls(t, "Predict", 1)
		stats := resolver.Stats()
		assert.Equal(t, int64(2), stats.TotalRequests)
		assert.Equal(t, int64(1), stats.MemoryHits)
		assert.Equal(t, int64(1), stats.PredictorCalls)
	})

	t.Run("Redis_Tier_Hit", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store := external.NewCacheClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
		req := testPhenotypeRequest()
		require.NoError(t, store.SetPrediction(ctx, req, &domain.PhenotypePrediction{
			Predicted:  domain.PhenotypeIntermediate,
			Confidence: domain.ConfidenceMedium,
		}, 0))

		predictor := new(MockPhenotypePredictor)
		resolver := NewCachedPhenotypeResolver(PhenotypeResolverConfig{}, predictor, store, quietLogger())

		prediction, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.PhenotypeIntermediate, prediction.Predicted)
		predictor.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
		assert.Equal(t, int64(1), resolver.Stats().StoreHits)
	})

	t.Run("Predictor_Result_Written_To_Store", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store := external.NewCacheClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
		req := testPhenotypeRequest()

		predictor := new(MockPhenotypePredictor)
		predictor.On("Predict", mock.Anything, req).Return(&domain.PhenotypePrediction{
			Predicted:  domain.PhenotypeUltrarapid,
			Confidence: domain.ConfidenceHigh,
		}, nil).Once()

		resolver := NewCachedPhenotypeResolver(PhenotypeResolverConfig{}, predictor, store, quietLogger())
		_, err := resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.True(t, mr.Exists(external.PredictionKey(req)))

		require.NoError(t, resolver.Invalidate(ctx, req))
		assert.False(t, mr.Exists(external.PredictionKey(req)))
	})

	t.Run("Predictor_Failure", func(t *testing.T) {
		predictor := new(MockPhenotypePredictor)
		predictor.On("Predict", mock.Anything, mock.Anything).Return(nil, domain.ErrPhenotypeUnavailable)

		resolver := NewCachedPhenotypeResolver(PhenotypeResolverConfig{}, predictor, nil, quietLogger())
		_, err := resolver.Resolve(ctx, testPhenotypeRequest())
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrPhenotypeUnavailable))
		assert.Equal(t, int64(1), resolver.Stats().ErrorCount)
	})

	t.Run("Nil_Request", func(t *testing.T) {
		resolver := NewCachedPhenotypeResolver(PhenotypeResolverConfig{}, new(MockPhenotypePredictor), nil, quietLogger())
		_, err := resolver.Resolve(ctx, nil)
		assert.Error(t, err)
	})
}

func TestCachedPhenotypeResolver_Apply(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name              string
		prediction        *domain.PhenotypePrediction
		predictErr        error
		expectedGenotype  domain.GenotypeAvailability
		expectedPhenotype domain.Phenotype
	}{
		{
			name:              "high confidence becomes known",
			prediction:        &domain.PhenotypePrediction{Predicted: domain.PhenotypePoor, Confidence: domain.ConfidenceHigh},
			expectedGenotype:  domain.GenotypeKnown,
			expectedPhenotype: domain.PhenotypePoor,
		},
		{
			name:              "medium confidence stays unknown",
			prediction:        &domain.PhenotypePrediction{Predicted: domain.PhenotypePoor, Confidence: domain.ConfidenceMedium},
			expectedGenotype:  domain.GenotypeUnknown,
			expectedPhenotype: domain.PhenotypeExtensive,
		},
		{
			name:              "failure degrades to unknown",
			predictErr:        domain.ErrPhenotypeUnavailable,
			expectedGenotype:  domain.GenotypeUnknown,
			expectedPhenotype: domain.PhenotypeExtensive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictor := new(MockPhenotypePredictor)
			if tt.predictErr != nil {
				predictor.On("Predict", mock.Anything, mock.Anything).Return(nil, tt.predictErr)
			} else {
				predictor.On("Predict", mock.Anything, mock.Anything).Return(tt.prediction, nil)
			}
			resolver := NewCachedPhenotypeResolver(PhenotypeResolverConfig{}, predictor, nil, quietLogger())

			input := basePatient()
			_, err := resolver.Apply(ctx, input, testPhenotypeRequest())
			if tt.predictErr != nil {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedGenotype, input.Genotype)
			assert.Equal(t, tt.expectedPhenotype, input.Phenotype)
		})
	}

	t.Run("entered genotype wins", func(t *testing.T) {
		predictor := new(MockPhenotypePredictor)
		resolver := NewCachedPhenotypeResolver(PhenotypeResolverConfig{}, predictor, nil, quietLogger())

		input := basePatient()
		input.Genotype = domain.GenotypeKnown
		input.Phenotype = domain.PhenotypeIntermediate

		prediction, err := resolver.Apply(ctx, input, testPhenotypeRequest())
		require.NoError(t, err)
		assert.Nil(t, prediction)
		assert.Equal(t, domain.PhenotypeIntermediate, input.Phenotype)
		predictor.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
	})
}
