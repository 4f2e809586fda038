// Package gateway issues chat completion calls to an OpenAI-compatible API
// on behalf of the grading pipeline.
//
// The gateway owns the calling convention per model family. Reasoning
// models (o1/o3/o4 prefixes) reject sampling controls and developer-role
// instructions, so they are called with no system message, no temperature,
// and a fixed low reasoning effort. All other models receive the system
// instruction and the caller's temperature.
//
// Errors surface to the caller unchanged: the gateway never retries, so a
// failed directive fails the run instead of silently degrading it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashgrovelabs/tutord/internal/logging"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 60 * time.Second

	// Rate limiter defaults: 50 requests per minute.
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5

	// reasoningEffort is fixed for reasoning-family models. Grading runs
	// many short calls; higher effort buys latency, not better verdicts.
	reasoningEffort = "low"
)

// reasoningPrefixes identifies models using the reasoning calling
// convention by name prefix.
var reasoningPrefixes = []string{"o1", "o3", "o4"}

// IsReasoningModel reports whether model uses the reasoning calling
// convention.
func IsReasoningModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range reasoningPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Request is one model call.
type Request struct {
	Model       string
	System      string // withheld from reasoning models
	Prompt      string
	Temperature float64 // withheld from reasoning models
}

// Config holds gateway client settings.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute float64
	Burst             int
	MaxTokens         int // 0 leaves the cap to the API
}

// Client calls an OpenAI-compatible API. Safe for concurrent use; token
// usage counters are shared across all calls and never reset.
type Client struct {
	baseURL    string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
	limiter    *rate.Limiter
	usage      *Usage
	metrics    *Metrics
	log        *logging.Logger
}

// New creates a gateway client.
func New(cfg Config, log *logging.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gateway: API key required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := defaultRateLimit
	if cfg.RequestsPerMinute > 0 {
		rps = cfg.RequestsPerMinute / 60.0
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = defaultBurst
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		usage:   &Usage{},
		metrics: NewMetrics(),
		log:     log.Named("gateway"),
	}, nil
}

// Usage returns the client's running token counters.
func (c *Client) Usage() *Usage {
	return c.usage
}

// chatRequest is the chat completions wire format. Temperature is a
// pointer so 0.0 is sent for standard models and the key is absent for
// reasoning models.
type chatRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	MaxTokens       int           `json:"max_tokens,omitempty"`
	Temperature     *float64      `json:"temperature,omitempty"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the chat completions response.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// apiError is the error envelope returned by the API.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends one chat completion request and returns the reply text.
//
// The calling convention depends on the model family; see the package
// documentation. Errors are returned unchanged, with no retry: callers
// decide what a failed call means for the submission being graded.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	family := "standard"
	if IsReasoningModel(req.Model) {
		family = "reasoning"
	}

	start := time.Now()
	text, usage, err := c.doChat(ctx, c.buildChatRequest(req))
	c.metrics.ObserveRequest(family, statusLabel(err), time.Since(start).Seconds())
	if err != nil {
		c.log.Warn(ctx, "model call failed",
			zap.String("model", req.Model),
			zap.String("family", family),
			zap.Error(err))
		return "", err
	}

	c.usage.Add(int64(usage.PromptTokens), int64(usage.CompletionTokens))
	c.metrics.AddTokens(usage.PromptTokens, usage.CompletionTokens)
	c.log.Debug(ctx, "model call complete",
		zap.String("model", req.Model),
		zap.String("family", family),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)))

	return text, nil
}

// buildChatRequest maps a Request onto the wire per the model's family.
func (c *Client) buildChatRequest(req Request) chatRequest {
	cr := chatRequest{
		Model:     req.Model,
		MaxTokens: c.maxTokens,
	}

	if IsReasoningModel(req.Model) {
		cr.ReasoningEffort = reasoningEffort
		cr.Messages = []chatMessage{{Role: "user", Content: req.Prompt}}
		return cr
	}

	temp := req.Temperature
	cr.Temperature = &temp
	if req.System != "" {
		cr.Messages = append(cr.Messages, chatMessage{Role: "system", Content: req.System})
	}
	cr.Messages = append(cr.Messages, chatMessage{Role: "user", Content: req.Prompt})
	return cr
}

type tokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// doChat performs the HTTP request to the chat completions endpoint.
func (c *Client) doChat(ctx context.Context, req chatRequest) (string, tokenUsage, error) {
	var usage tokenUsage

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", usage, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", usage, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", usage, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", usage, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode >= 500 {
		return "", usage, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", usage, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", usage, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", usage, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", usage, fmt.Errorf("empty response from API")
	}

	usage.PromptTokens = chatResp.Usage.PromptTokens
	usage.CompletionTokens = chatResp.Usage.CompletionTokens
	return chatResp.Choices[0].Message.Content, usage, nil
}

// statusLabel maps a call outcome onto the metrics status label.
func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
