package analysis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chat-sentiment-demo/backend/pkg/cache"
	"chat-sentiment-demo/backend/pkg/config"
	"chat-sentiment-demo/backend/pkg/logger"
	"chat-sentiment-demo/backend/pkg/resilience"
	"chat-sentiment-demo/backend/shared/observability"
	redisclient "chat-sentiment-demo/backend/shared/redis"
)

// LabelScore is one classifier label with its confidence
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// InferenceClient calls hosted text-classification models over HTTP.
// Results are cached by text hash, first in Redis when available and
// otherwise in process, so repeated messages are scored once.
type InferenceClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	breaker    *resilience.CircuitBreaker
	redis      *redisclient.Client
	local      *cache.Cache
	metrics    *observability.Metrics
	log        *logger.Logger
}

// InferenceOption configures an InferenceClient
type InferenceOption func(*InferenceClient)

// WithRedis enables the distributed result cache
func WithRedis(client *redisclient.Client) InferenceOption {
	return func(c *InferenceClient) {
		c.redis = client
	}
}

// WithHTTPClient overrides the HTTP client, primarily for tests
func WithHTTPClient(httpClient *http.Client) InferenceOption {
	return func(c *InferenceClient) {
		c.httpClient = httpClient
	}
}

// WithBaseURL overrides the inference endpoint base URL
func WithBaseURL(baseURL string) InferenceOption {
	return func(c *InferenceClient) {
		c.baseURL = baseURL
	}
}

// WithMetrics records inference latency on the given instruments
func WithMetrics(metrics *observability.Metrics) InferenceOption {
	return func(c *InferenceClient) {
		c.metrics = metrics
	}
}

// NewInferenceClient creates a client for the configured inference endpoint
func NewInferenceClient(log *logger.Logger, opts ...InferenceOption) *InferenceClient {
	cfg := config.Get()

	client := &InferenceClient{
		httpClient: &http.Client{Timeout: cfg.Inference.Timeout},
		baseURL:    cfg.Inference.BaseURL,
		token:      cfg.Inference.Token,
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("inference"), log),
		local:      cache.NewCache(),
		log:        log,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Classify runs one model against the given text and returns all label
// scores, most confident first as returned by the service
func (c *InferenceClient) Classify(ctx context.Context, model, text string) ([]LabelScore, error) {
	cacheKey := classifyCacheKey(model, text)

	if scores, ok := c.cachedResult(ctx, cacheKey); ok {
		return scores, nil
	}

	var scores []LabelScore
	err := c.breaker.Execute(func() error {
		var callErr error
		scores, callErr = c.callModel(ctx, model, text)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	c.storeResult(ctx, cacheKey, scores)

	return scores, nil
}

func (c *InferenceClient) callModel(ctx context.Context, model, text string) ([]LabelScore, error) {
	payload, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	defer func() {
		c.metrics.RecordInference(ctx, model, time.Since(start), err)
	}()
	if err != nil {
		c.log.Error("Inference request failed",
			"model", model,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error("Inference service returned error",
			"model", model,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, fmt.Errorf("inference service returned status %d", resp.StatusCode)
	}

	// The hosted API wraps single-input results in an extra array level
	var nested [][]LabelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		c.log.Debug("Inference completed",
			"model", model,
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return nested[0], nil
	}

	var flat []LabelScore
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse inference response: %w", err)
	}

	return flat, nil
}

func (c *InferenceClient) cachedResult(ctx context.Context, key string) ([]LabelScore, bool) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, key)
		if err == nil {
			var scores []LabelScore
			if jsonErr := json.Unmarshal([]byte(raw), &scores); jsonErr == nil {
				return scores, true
			}
		} else if !redisclient.IsNotFound(err) {
			c.log.Warn("Redis cache lookup failed", "error", err.Error())
		}
	}

	if value, found := c.local.Get(key); found {
		if scores, ok := value.([]LabelScore); ok {
			return scores, true
		}
	}

	return nil, false
}

func (c *InferenceClient) storeResult(ctx context.Context, key string, scores []LabelScore) {
	cfg := config.Get()

	if c.redis != nil {
		if raw, err := json.Marshal(scores); err == nil {
			if err := c.redis.Set(ctx, key, raw, cfg.Cache.TTL); err != nil {
				c.log.Warn("Redis cache write failed", "error", err.Error())
			}
		}
	}

	c.local.Set(key, scores)
}

func classifyCacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("classify:%s:%s", model, hex.EncodeToString(sum[:]))
}
