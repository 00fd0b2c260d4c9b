package llm

import (
	"context"
	"strings"

	"github.com/BaSui01/docflow/llm/tokenizer"
)

// FallbackName 离线 provider 名称
const FallbackName = "fallback"

// FallbackProvider 离线演示模式：返回请求中的模板内容，不访问网络
type FallbackProvider struct {
	counter tokenizer.Counter
}

// NewFallbackProvider 创建离线 provider
func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{counter: tokenizer.NewEstimator()}
}

func (p *FallbackProvider) Name() string { return FallbackName }

func (p *FallbackProvider) Live() bool { return false }

// Generate 返回 req.Template；模板为空时返回提示词本身
func (p *FallbackProvider) Generate(ctx context.Context, req GenerateRequest) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := req.Template
	if strings.TrimSpace(content) == "" {
		content = req.Prompt
	}
	return &Completion{
		Content:          content,
		Model:            FallbackName,
		Provider:         FallbackName,
		PromptTokens:     p.counter.Count(req.System) + p.counter.Count(req.Prompt),
		CompletionTokens: p.counter.Count(content),
	}, nil
}
