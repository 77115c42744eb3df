package genai

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
}

func (g *stubGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func fastClientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.RequestsPerMinute = 1000
	cfg.Retry = RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2.0}
	return cfg
}

func TestSendMessageValidation(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	client := NewClient(gen, fastClientConfig())

	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"empty message", GenerateRequest{Message: "", Temperature: 0.5}},
		{"temperature too high", GenerateRequest{Message: "hi", Temperature: 1.5}},
		{"temperature negative", GenerateRequest{Message: "hi", Temperature: -0.1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.SendMessage(context.Background(), tc.req)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}

	assert.Equal(t, 0, gen.callCount(), "validation failures must not reach the capability")
}

func TestSendMessageMaxLength(t *testing.T) {
	cfg := fastClientConfig()
	cfg.MaxMessageLength = 10
	client := NewClient(&stubGenerator{response: "ok"}, cfg)

	_, err := client.SendMessage(context.Background(), GenerateRequest{Message: "this message is far too long", Temperature: 0.5})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestSendMessageCacheIdempotence(t *testing.T) {
	gen := &stubGenerator{response: "cached answer"}
	client := NewClient(gen, fastClientConfig())

	req := GenerateRequest{Message: "what is up", SystemInstruction: "be brief", Temperature: 0.5}

	first, err := client.SendMessage(context.Background(), req)
	require.NoError(t, err)
	second, err := client.SendMessage(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.callCount(), "identical requests must issue one underlying call")

	// A different json_mode is a different cache identity.
	req.JSONMode = true
	_, err = client.SendMessage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.callCount())
}

func TestSendMessageCacheDisabled(t *testing.T) {
	gen := &stubGenerator{response: "fresh"}
	cfg := fastClientConfig()
	cfg.CacheEnabled = false
	client := NewClient(gen, cfg)

	req := GenerateRequest{Message: "ping", Temperature: 0.5}
	_, err := client.SendMessage(context.Background(), req)
	require.NoError(t, err)
	_, err = client.SendMessage(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, gen.callCount())
}

func TestSendMessageCounters(t *testing.T) {
	gen := &stubGenerator{response: "four score and seven"}
	client := NewClient(gen, fastClientConfig())

	_, err := client.SendMessage(context.Background(), GenerateRequest{Message: "speech", Temperature: 0.5})
	require.NoError(t, err)

	usage := client.Usage()
	assert.Equal(t, int64(1), usage.TotalRequests)
	assert.Equal(t, int64(0), usage.FailedRequests)
	assert.Greater(t, usage.TokensUsed, int64(0))
}

func TestSendMessageFailureCounters(t *testing.T) {
	gen := &stubGenerator{err: &FatalError{Err: assert.AnError}}
	client := NewClient(gen, fastClientConfig())

	_, err := client.SendMessage(context.Background(), GenerateRequest{Message: "boom", Temperature: 0.5})
	require.Error(t, err)

	usage := client.Usage()
	assert.Equal(t, int64(1), usage.TotalRequests)
	assert.Equal(t, int64(1), usage.FailedRequests)
	assert.Equal(t, int64(0), usage.TokensUsed, "failed calls must not account tokens")
}
