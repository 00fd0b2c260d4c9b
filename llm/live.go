package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/internal/tlsutil"
	"github.com/BaSui01/docflow/llm/circuitbreaker"
	"github.com/BaSui01/docflow/llm/retry"
	"github.com/BaSui01/docflow/llm/tokenizer"
	"github.com/BaSui01/docflow/types"
)

// LiveName 在线 provider 名称
const LiveName = "openai-compatible"

const chatCompletionsPath = "/v1/chat/completions"

// =============================================================================
// 🌐 OpenAI 兼容协议
// =============================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		FinishReason string      `json:"finish_reason"`
		Message      chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// =============================================================================
// 🤖 LiveProvider
// =============================================================================

// LiveProvider 调用 OpenAI 兼容接口生成内容
type LiveProvider struct {
	cfg     config.LLMConfig
	client  *http.Client
	limiter *rate.Limiter
	retryer *retry.Retryer
	breaker *circuitbreaker.Breaker
	counter tokenizer.Counter
	logger  *zap.Logger
}

// LiveOption LiveProvider 选项
type LiveOption func(*LiveProvider)

func withRetryPolicy(policy retry.Policy) LiveOption {
	policy.MaxRetries = min(policy.MaxRetries, 1)
	return func(p *LiveProvider) { p.retryer = retry.New(policy, p.logger) }
}

func withCounter(c tokenizer.Counter) LiveOption {
	return func(p *LiveProvider) { p.counter = c }
}

// NewLiveProvider 创建在线 provider
func NewLiveProvider(cfg config.LLMConfig, logger *zap.Logger, opts ...LiveOption) *LiveProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "llm"), zap.String("provider", LiveName))

	def := config.DefaultLLMConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	// 瞬时错误至多重试一次
	cfg.MaxRetries = min(max(cfg.MaxRetries, 0), 1)

	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries

	p := &LiveProvider{
		cfg:     cfg,
		client:  tlsutil.NewHTTPClient(cfg.Timeout, tlsutil.WithUserAgent("docflow-llm")),
		limiter: rate.NewLimiter(limit, burst),
		retryer: retry.New(policy, logger),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Threshold:    cfg.BreakerThreshold,
			ResetTimeout: cfg.BreakerTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("llm circuit breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}, logger),
		counter: tokenizer.ForModel(cfg.Model),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LiveProvider) Name() string { return LiveName }

func (p *LiveProvider) Live() bool { return true }

// BreakerState 返回熔断器状态
func (p *LiveProvider) BreakerState() circuitbreaker.State { return p.breaker.State() }

// Ready 熔断器打开时报告未就绪
func (p *LiveProvider) Ready(context.Context) error {
	if st := p.BreakerState(); st == circuitbreaker.StateOpen {
		return fmt.Errorf("llm circuit breaker is %s", st)
	}
	return nil
}

// Generate 调用上游生成内容：限流 → 熔断 → 请求，瞬时错误最多重试 MaxRetries 次
func (p *LiveProvider) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	prompt, truncated := tokenizer.Fit(p.counter, req.Prompt, p.cfg.MaxPromptTokens)
	if truncated {
		p.logger.Info("prompt truncated to token budget",
			zap.String("task", req.Task),
			zap.Int("max_prompt_tokens", p.cfg.MaxPromptTokens))
	}

	body := chatRequest{
		Model:       p.cfg.Model,
		Messages:    make([]chatMessage, 0, 2),
		MaxTokens:   req.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = p.cfg.MaxTokens
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	completion, err := retry.Do(ctx, p.retryer, func(ctx context.Context) (*Completion, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		c, err := circuitbreaker.Execute(ctx, p.breaker, func(ctx context.Context) (*Completion, error) {
			return p.call(ctx, payload)
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyCallsInHalfOpen) {
			return nil, types.NewError(types.ErrProviderUnavailable, "content provider temporarily unavailable").
				WithCause(err).
				WithProvider(LiveName).
				WithHTTPStatus(http.StatusServiceUnavailable)
		}
		return c, err
	})
	if err != nil {
		p.logger.Warn("content generation failed",
			zap.String("task", req.Task),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	completion.Truncated = truncated
	p.logger.Debug("content generated",
		zap.String("task", req.Task),
		zap.String("model", completion.Model),
		zap.Int("prompt_tokens", completion.PromptTokens),
		zap.Int("completion_tokens", completion.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return completion, nil
}

func (p *LiveProvider) endpoint() string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + chatCompletionsPath
}

// call 发起一次 HTTP 请求
func (p *LiveProvider) call(ctx context.Context, payload []byte) (*Completion, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewUpstreamError(LiveName, err.Error()).WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewUpstreamError(LiveName, "invalid response body").WithRetryable(true).WithCause(err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, types.NewUpstreamError(LiveName, "empty completion").WithRetryable(true)
	}

	model := out.Model
	if model == "" {
		model = p.cfg.Model
	}
	return &Completion{
		Content:          out.Choices[0].Message.Content,
		Model:            model,
		Provider:         LiveName,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

// mapHTTPError 将上游 HTTP 状态码映射为统一错误
func mapHTTPError(status int, msg string) *types.Error {
	switch {
	case status == http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, msg).WithHTTPStatus(status).WithProvider(LiveName)
	case status == http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).WithHTTPStatus(status).WithProvider(LiveName)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(LiveName)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamTimeout, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(LiveName)
	case status >= 500:
		return types.NewUpstreamError(LiveName, msg).WithHTTPStatus(status).WithRetryable(true)
	default:
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status).WithProvider(LiveName)
	}
}

// readErrorMessage 读取 OpenAI 风格的错误信息，失败时回退到原始文本
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
