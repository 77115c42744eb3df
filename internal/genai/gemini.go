package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiGenerator implements Generator against the Gemini REST API. HTTP
// status codes are mapped onto the transient/fatal taxonomy so the retry
// executor can classify failures.
type GeminiGenerator struct {
	apiKey string
	model  string
	http   *http.Client
}

func NewGeminiGenerator(apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, NewValidationError("API_KEY not found in environment")
	}
	zap.S().Named("genai").Infof("generation client initialized with model: %s", model)
	return &GeminiGenerator{
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Message}}}},
		GenerationConfig: geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	if req.JSONMode {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &FatalError{Err: err}
	}

	url := fmt.Sprintf(geminiEndpoint, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &FatalError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", &TransientError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus(resp.StatusCode, raw)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &TransientError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &TransientError{Err: fmt.Errorf("response contains no candidates")}
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func classifyHTTPStatus(code int, body []byte) error {
	err := fmt.Errorf("status %d: %s", code, truncateBody(body))
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &FatalError{Err: fmt.Errorf("authentication failed: %w", err)}
	case code == http.StatusNotFound:
		return &FatalError{Err: fmt.Errorf("invalid model: %w", err)}
	case code == http.StatusBadRequest:
		return &FatalError{Err: err}
	default:
		// 429 and 5xx are worth retrying.
		return &TransientError{Err: err}
	}
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
