package genai

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/celia-labs/celia-agent/pkg/metrics"
)

// GenerateRequest describes one call to the text generation capability.
type GenerateRequest struct {
	Message           string
	SystemInstruction string
	JSONMode          bool
	Temperature       float64
	MaxOutputTokens   int
}

// Generator is the abstract outbound text-generation capability. An
// implementation must surface distinguishable transient vs fatal failures
// (TransientError / FatalError, or matching descriptions) for retry
// classification to work.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Usage is a snapshot of the client's monotone counters.
type Usage struct {
	TotalRequests  int64
	FailedRequests int64
	TokensUsed     int64
}

// ClientConfig tunes the resilient call client.
type ClientConfig struct {
	RequestsPerMinute int
	Retry             RetryConfig
	MaxMessageLength  int
	MaxPlanSteps      int
	CacheEnabled      bool
	CacheCapacity     int
	CacheTTL          time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestsPerMinute: 30,
		Retry:             DefaultRetryConfig(),
		MaxMessageLength:  100000,
		MaxPlanSteps:      20,
		CacheEnabled:      true,
		CacheCapacity:     256,
		CacheTTL:          time.Hour,
	}
}

// Client wraps a Generator with admission control, retry with backoff, an
// optional response cache and usage accounting. One instance is shared by
// all jobs, so the limiter throttles the process as a whole.
type Client struct {
	generator    Generator
	retrier      *Retryer
	cache        *responseCache
	maxMsgLength int
	maxPlanSteps int

	totalRequests  atomic.Int64
	failedRequests atomic.Int64
	tokensUsed     atomic.Int64
}

func NewClient(generator Generator, cfg ClientConfig) *Client {
	if cfg.MaxMessageLength < 1 {
		cfg.MaxMessageLength = DefaultClientConfig().MaxMessageLength
	}
	if cfg.MaxPlanSteps < 1 {
		cfg.MaxPlanSteps = DefaultClientConfig().MaxPlanSteps
	}

	c := &Client{
		generator:    generator,
		retrier:      NewRetryer(cfg.Retry, NewRateLimiter(cfg.RequestsPerMinute)),
		maxMsgLength: cfg.MaxMessageLength,
		maxPlanSteps: cfg.MaxPlanSteps,
	}
	if cfg.CacheEnabled {
		c.cache = newResponseCache(cfg.CacheCapacity, cfg.CacheTTL)
	}
	return c
}

// SendMessage validates the request, consults the cache, then delegates the
// call through the retry executor. Counters only ever increase.
func (c *Client) SendMessage(ctx context.Context, req GenerateRequest) (string, error) {
	if err := c.validate(req); err != nil {
		return "", err
	}

	var key string
	if c.cache != nil {
		key = cacheKey(req.Message, req.SystemInstruction, req.JSONMode)
		if response, ok := c.cache.get(key); ok {
			metrics.IncreaseGenerateCacheHitsTotalMetric()
			return response, nil
		}
	}

	c.totalRequests.Add(1)
	metrics.IncreaseGenerateRequestsTotalMetric()

	var response string
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		text, err := c.generator.Generate(ctx, req)
		if err != nil {
			return err
		}
		response = text
		return nil
	})
	if err != nil {
		c.failedRequests.Add(1)
		metrics.IncreaseGenerateFailuresTotalMetric()
		zap.S().Named("genai").Errorf("generation call failed: %v", err)
		return "", err
	}

	tokens := estimateTokens(req.Message) + estimateTokens(req.SystemInstruction) + estimateTokens(response)
	c.tokensUsed.Add(int64(tokens))
	metrics.AddGenerateTokensTotalMetric(tokens)

	if c.cache != nil {
		c.cache.put(key, response)
	}
	return response, nil
}

// Usage returns a point-in-time snapshot of the counters.
func (c *Client) Usage() Usage {
	return Usage{
		TotalRequests:  c.totalRequests.Load(),
		FailedRequests: c.failedRequests.Load(),
		TokensUsed:     c.tokensUsed.Load(),
	}
}

func (c *Client) validate(req GenerateRequest) error {
	if req.Message == "" {
		return NewValidationError("message must not be empty")
	}
	if len(req.Message) > c.maxMsgLength {
		return NewValidationError("message exceeds maximum length of %d", c.maxMsgLength)
	}
	if req.Temperature < 0 || req.Temperature > 1 {
		return NewValidationError("temperature %v outside [0,1]", req.Temperature)
	}
	return nil
}

// estimateTokens approximates usage at four characters per token; the
// capability does not report exact counts.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
