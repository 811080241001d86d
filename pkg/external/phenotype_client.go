package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/scdaid-mcp-server/internal/domain"
)

// ServicePhenotypeAPI identifies predictions that came from the remote model
const ServicePhenotypeAPI = "phenotype-api"

// PhenotypeClient calls the CYP2D6 phenotype prediction service
type PhenotypeClient struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// PhenotypeClientConfig represents configuration for the prediction client
type PhenotypeClientConfig struct {
	BaseURL        string               `json:"base_url"`
	Timeout        time.Duration        `json:"timeout"`
	RateLimit      int                  `json:"rate_limit"` // requests per second
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
}

// predictRequest is the wire form expected by POST /predict_phenotype
type predictRequest struct {
	Age                   float64 `json:"age"`
	Weight                float64 `json:"weight"`
	EGFR                  float64 `json:"egfr"`
	Sex                   string  `json:"sex"`
	CYP2D6Inhibitor       string  `json:"cyp2d6_inhibitor"`
	PriorCodeineResponse  string  `json:"prior_codeine_response"`
	PriorTramadolResponse string  `json:"prior_tramadol_response"`
}

// predictResponse is the wire form returned by the service
type predictResponse struct {
	Predicted     string             `json:"predicted"`
	Confidence    string             `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Error         string             `json:"error,omitempty"`
}

// NewPhenotypeClient creates a new phenotype prediction client
func NewPhenotypeClient(config PhenotypeClientConfig, logger *logrus.Logger) *PhenotypeClient {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	return &PhenotypeClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:   NewCircuitBreaker("PhenotypeAPI", config.CircuitBreaker, logger),
		logger:    logger,
	}
}

// Predict requests a phenotype prediction. The returned phenotype is already mapped onto
// engine codes.
func (c *PhenotypeClient) Predict(ctx context.Context, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, error) {
	if req == nil {
		return nil, fmt.Errorf("phenotype prediction: request cannot be nil")
	}
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doPredict(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPhenotypeUnavailable, err)
		}
		return nil, err
	}
	return result.(*domain.PhenotypePrediction), nil
}

func (c *PhenotypeClient) doPredict(ctx context.Context, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, error) {
	body, err := json.Marshal(toWire(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict_phenotype", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", domain.ErrPhenotypeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrPhenotypeUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var wire predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrPhenotypeUnavailable, err)
	}
	if wire.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrPhenotypeUnavailable, wire.Error)
	}

	prediction, err := fromWire(&wire)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"predicted":  prediction.Predicted,
		"raw_code":   prediction.RawCode,
		"confidence": prediction.Confidence,
	}).Debug("Received phenotype prediction")

	return prediction, nil
}

// Health checks GET /health on the prediction service
func (c *PhenotypeClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || status.Status != "ok" {
		return fmt.Errorf("phenotype service unhealthy: status %d %q", resp.StatusCode, status.Status)
	}
	return nil
}

func toWire(req *domain.PhenotypeRequest) predictRequest {
	inhibitor := "no"
	if req.CYP2D6Inhibitor {
		inhibitor = "yes"
	}
	return predictRequest{
		Age:                   req.Age,
		Weight:                req.Weight,
		EGFR:                  req.EGFR,
		Sex:                   strings.ToUpper(strings.TrimSpace(req.Sex)),
		CYP2D6Inhibitor:       inhibitor,
		PriorCodeineResponse:  responseOrUnknown(req.PriorCodeineResponse),
		PriorTramadolResponse: responseOrUnknown(req.PriorTramadolResponse),
	}
}

func responseOrUnknown(r domain.PriorResponse) string {
	if r == "" || !r.IsValid() {
		return string(domain.ResponseUnknown)
	}
	return string(r)
}

func fromWire(wire *predictResponse) (*domain.PhenotypePrediction, error) {
	phenotype, err := domain.ParsePhenotype(wire.Predicted)
	if err != nil {
		return nil, fmt.Errorf("%w: unrecognized phenotype %q", domain.ErrPhenotypeUnavailable, wire.Predicted)
	}

	confidence := domain.PredictionConfidence(strings.ToLower(wire.Confidence))
	switch confidence {
	case domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow:
	default:
		top := 0.0
		for _, p := range wire.Probabilities {
			if p > top {
				top = p
			}
		}
		confidence = domain.ConfidenceFor(top)
	}

	return &domain.PhenotypePrediction{
		Predicted:     phenotype,
		RawCode:       strings.ToUpper(strings.TrimSpace(wire.Predicted)),
		Confidence:    confidence,
		Probabilities: wire.Probabilities,
		Source:        ServicePhenotypeAPI,
		ReceivedAt:    time.Now().UTC(),
	}, nil
}
